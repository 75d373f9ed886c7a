package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// APIError is a structured server rejection
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether another attempt can succeed without changing the
// request. 4xx rejections are deterministic; only server-side failures and
// transport errors are worth retrying.
func (e *APIError) Retryable() bool {
	return e.Status >= 500
}

// Client is the field device's HTTP client against the inspection API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client for the sync engine
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

// Health probes connectivity. A nil error means the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// CreateInspection submits a queued inspection create. The payload already
// carries the clientRef, so replays settle on the same server record.
func (c *Client) CreateInspection(ctx context.Context, payload []byte) (uuid.UUID, error) {
	return c.postJSON(ctx, "/api/inspections", payload)
}

// CreateRoom submits a queued room under its server-side inspection
func (c *Client) CreateRoom(ctx context.Context, inspectionID uuid.UUID, payload []byte) (uuid.UUID, error) {
	return c.postJSON(ctx, "/api/inspections/"+inspectionID.String()+"/rooms", payload)
}

// UploadPhoto submits a queued photo file under its server-side room
func (c *Client) UploadPhoto(ctx context.Context, inspectionID, roomID uuid.UUID, filePath, clientRef, caption string, position int) (uuid.UUID, error) {
	path := fmt.Sprintf("/api/inspections/%s/rooms/%s/photos", inspectionID, roomID)
	fields := map[string]string{
		"clientRef": clientRef,
		"caption":   caption,
		"position":  fmt.Sprintf("%d", position),
	}
	return c.postFile(ctx, path, filePath, fields)
}

// UploadPDF submits the locally rendered report for an inspection
func (c *Client) UploadPDF(ctx context.Context, inspectionID uuid.UUID, filePath string) (string, error) {
	raw, err := c.postFileRaw(ctx, "/api/inspections/"+inspectionID.String()+"/pdf", filePath, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		PDFURL string `json:"pdfUrl"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("malformed upload response: %w", err)
	}
	return out.PDFURL, nil
}

// Finalize submits the finalize transition for an inspection
func (c *Client) Finalize(ctx context.Context, inspectionID uuid.UUID, payload []byte) (uuid.UUID, error) {
	return c.postJSON(ctx, "/api/inspections/"+inspectionID.String()+"/finalize", payload)
}

func (c *Client) postJSON(ctx context.Context, path string, payload []byte) (uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return uuid.Nil, err
	}
	var out idResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return uuid.Nil, fmt.Errorf("malformed server response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) postFile(ctx context.Context, path, filePath string, fields map[string]string) (uuid.UUID, error) {
	raw, err := c.postFileRaw(ctx, path, filePath, fields)
	if err != nil {
		return uuid.Nil, err
	}
	var out idResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return uuid.Nil, fmt.Errorf("malformed server response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) postFileRaw(ctx context.Context, path, filePath string, fields map[string]string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "VALIDATION", Message: "local file missing: " + filePath}
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v != "" {
			mw.WriteField(k, v)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

// do executes the request and unwraps the response envelope. Transport errors
// come back as-is (retryable); server rejections come back as *APIError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Code: "INTERNAL", Message: string(body)}
		}
		return nil, fmt.Errorf("malformed server response: %w", err)
	}

	if !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	return env.Data, nil
}
