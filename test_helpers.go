package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"cnic-capture/models"

	"github.com/stretchr/testify/require"
)

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8082,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

const testBaseURL = "http://localhost:8082"

func startTestServer(t *testing.T, storage SessionStorage, updateClient OrderUpdateClient) *Server {
	t.Helper()

	testState := &ServerState{
		sessionStorage: storage,
		updateClient:   updateClient,
		slots:          []string{models.SlotAcknowledgement},
	}

	srv, err := NewServer(testState, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, testBaseURL+"/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return srv
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// session bootstrap
func startSession(t *testing.T) (sessionID, nonce string) {
	t.Helper()
	resp, body, sr := postJSON[models.StartSessionResponse](t, testBaseURL+"/api/session/start", nil)
	mustStatus(t, resp, http.StatusOK, body)
	require.NotEmpty(t, sr.SessionId)
	require.NotEmpty(t, sr.Nonce)
	return sr.SessionId, sr.Nonce
}

func sessionRef(sessionID, nonce string) models.SessionRef {
	return models.SessionRef{SessionId: sessionID, Nonce: nonce}
}

// makePNG renders a small gradient so encoded output is a real decodable image.
func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(makePNG(t, w, h))
}

func uploadBase64(t *testing.T, sessionID, nonce, data, fileName string) (*http.Response, []byte, *models.SlotResponse) {
	t.Helper()
	req := models.Base64UploadRequest{
		SessionRef: sessionRef(sessionID, nonce),
		Data:       data,
		FileName:   fileName,
	}
	return postJSON[models.SlotResponse](t, testBaseURL+"/api/uploads/"+models.SlotAcknowledgement, req)
}

func getSlot(t *testing.T, sessionID, nonce string) (*http.Response, []byte, *models.SlotResponse) {
	t.Helper()
	url := testBaseURL + "/api/uploads/" + models.SlotAcknowledgement + "?session_id=" + sessionID + "&nonce=" + nonce
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var v models.SlotResponse
	_ = json.Unmarshal(body, &v)
	return resp, body, &v
}

// test doubles

type fakeUpdateClient struct {
	mutex      sync.Mutex
	result     *UpdateResult
	err        error
	block      chan struct{} // when set, UpdateOrder waits until it is closed
	calls      int
	lastFields map[string]string
	lastImages map[string]models.StagedImage
}

func (f *fakeUpdateClient) UpdateOrder(fields map[string]string, attachments map[string]models.StagedImage) (*UpdateResult, error) {
	f.mutex.Lock()
	f.calls++
	f.lastFields = fields
	f.lastImages = attachments
	block := f.block
	f.mutex.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &UpdateResult{Status: http.StatusOK, Message: "updated"}, nil
}

func (f *fakeUpdateClient) HealthCheck() error {
	return nil
}

func (f *fakeUpdateClient) callCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}
