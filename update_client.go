package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"cnic-capture/models"
)

// UpdateResult carries what the client inspects of the upstream response:
// the HTTP status and, when the body is JSON, its message field.
type UpdateResult struct {
	Status  int
	Message string
}

// OrderUpdateClient defines the interface for the remote order record update
type OrderUpdateClient interface {
	// UpdateOrder sends one partial-update request with the given flat field
	// values and staged images. It is never retried by the caller.
	UpdateOrder(fields map[string]string, attachments map[string]models.StagedImage) (*UpdateResult, error)

	// HealthCheck verifies the upstream order service is reachable
	HealthCheck() error
}

// RemoteOrderClient implements the OrderUpdateClient interface
type RemoteOrderClient struct {
	baseURL    string
	authHeader string
	tokens     TokenProvider
	httpClient *http.Client
}

// NewRemoteOrderClient creates a new instance of RemoteOrderClient.
// authHeader names the header the credential travels in; the upstream expects
// a non-standard header rather than Authorization.
func NewRemoteOrderClient(baseURL, authHeader string, tokens TokenProvider) *RemoteOrderClient {
	if authHeader == "" {
		authHeader = "token"
	}
	return &RemoteOrderClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authHeader: authHeader,
		tokens:     tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UpdateOrder assembles all field values and staged images into one multipart
// request. A non-2xx status or transport failure is returned as an error; the
// caller decides what state to preserve.
func (c *RemoteOrderClient) UpdateOrder(fields map[string]string, attachments map[string]models.StagedImage) (*UpdateResult, error) {
	url := fmt.Sprintf("%s/order/update", c.baseURL)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %q: %w", name, err)
		}
	}

	for slot, staged := range attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, slot, staged.FileName))
		header.Set("Content-Type", staged.ContentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create image part %q: %w", slot, err)
		}
		if _, err := part.Write(staged.Data); err != nil {
			return nil, fmt.Errorf("failed to write image part %q: %w", slot, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create update request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credential: %w", err)
	}
	req.Header.Set(c.authHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute update request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("order update failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	result := &UpdateResult{Status: resp.StatusCode, Message: extractMessage(respBody)}
	slog.Info("Order update accepted upstream", "status", resp.StatusCode)
	return result, nil
}

// extractMessage pulls the message field out of a JSON response body; other
// bodies are passed through unparsed. No response schema is enforced.
func extractMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}

// HealthCheck verifies the upstream order service is reachable
func (c *RemoteOrderClient) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	slog.Info("Upstream order service health check passed")
	return nil
}
