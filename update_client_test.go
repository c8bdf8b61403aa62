package main

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"cnic-capture/models"

	"github.com/stretchr/testify/require"
)

func TestUpdateOrderSendsFieldsAndAttachments(t *testing.T) {
	var gotPath, gotMethod, gotToken string
	var gotFields map[string][]string
	var gotFile struct {
		fileName    string
		contentType string
		data        []byte
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotToken = r.Header.Get("token")

		require.NoError(t, r.ParseMultipartForm(8<<20))
		gotFields = r.MultipartForm.Value

		file, header, err := r.FormFile(models.SlotAcknowledgement)
		require.NoError(t, err)
		defer file.Close()
		gotFile.fileName = header.Filename
		gotFile.contentType = header.Header.Get("Content-Type")
		gotFile.data, err = io.ReadAll(file)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"record updated"}`))
	}))
	defer upstream.Close()

	tokens, err := NewStaticTokenProvider("test-credential")
	require.NoError(t, err)
	client := NewRemoteOrderClient(upstream.URL, "", tokens)

	result, err := client.UpdateOrder(
		map[string]string{"order_id": "ord-7", "full_name": "Ayesha Khan"},
		map[string]models.StagedImage{
			models.SlotAcknowledgement: {
				FileName:    "cnic.jpg",
				ContentType: "image/jpeg",
				Data:        []byte{0xff, 0xd8, 0xff},
			},
		},
	)
	require.NoError(t, err)

	require.Equal(t, "/order/update", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "test-credential", gotToken)
	require.Equal(t, []string{"ord-7"}, gotFields["order_id"])
	require.Equal(t, []string{"Ayesha Khan"}, gotFields["full_name"])
	require.Equal(t, "cnic.jpg", gotFile.fileName)
	require.Equal(t, "image/jpeg", gotFile.contentType)
	require.Equal(t, []byte{0xff, 0xd8, 0xff}, gotFile.data)

	require.Equal(t, http.StatusOK, result.Status)
	require.Equal(t, "record updated", result.Message)
}

// An empty form with nothing staged still submits, just with zero parts.
func TestUpdateOrderEmptyFormSendsNoParts(t *testing.T) {
	var partCount int

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)

		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			if _, err := reader.NextPart(); err != nil {
				break
			}
			partCount++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	tokens, err := NewStaticTokenProvider("test-credential")
	require.NoError(t, err)
	client := NewRemoteOrderClient(upstream.URL, "", tokens)

	result, err := client.UpdateOrder(map[string]string{}, map[string]models.StagedImage{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.Status)
	require.Zero(t, partCount)
}

func TestUpdateOrderCustomAuthHeader(t *testing.T) {
	var gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Service-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	tokens, err := NewStaticTokenProvider("abc")
	require.NoError(t, err)
	client := NewRemoteOrderClient(upstream.URL, "X-Service-Token", tokens)

	_, err = client.UpdateOrder(nil, nil)
	require.NoError(t, err)
	require.Equal(t, "abc", gotHeader)
}

func TestUpdateOrderUpstreamRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"cnic_number invalid"}`))
	}))
	defer upstream.Close()

	tokens, err := NewStaticTokenProvider("abc")
	require.NoError(t, err)
	client := NewRemoteOrderClient(upstream.URL, "", tokens)

	_, err = client.UpdateOrder(map[string]string{"cnic_number": "bad"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "422")
}

func TestUpdateOrderTransportFailure(t *testing.T) {
	tokens, err := NewStaticTokenProvider("abc")
	require.NoError(t, err)
	client := NewRemoteOrderClient("http://127.0.0.1:1", "", tokens)

	_, err = client.UpdateOrder(nil, nil)
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	tokens, err := NewStaticTokenProvider("abc")
	require.NoError(t, err)
	client := NewRemoteOrderClient(upstream.URL, "", tokens)
	require.NoError(t, client.HealthCheck())

	down := NewRemoteOrderClient("http://127.0.0.1:1", "", tokens)
	require.Error(t, down.HealthCheck())
}
