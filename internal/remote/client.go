package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is the contract the orchestrator and sync engine consume. The
// server is never the source of truth for what happened locally.
type Client interface {
	// CheckConnectivity performs a quick health check and returns the
	// online/offline status. Never returns an error: offline is a state,
	// not a fault.
	CheckConnectivity(ctx context.Context) bool
	// VerifyFaceAutomatic identifies the user from the image and detects
	// the entry/exit type server-side.
	VerifyFaceAutomatic(ctx context.Context, image []byte, lat, lng *float64) (*VerificationResult, error)
	// VerifyFaceManual verifies a known cedula against the image.
	VerifyFaceManual(ctx context.Context, cedula string, image []byte, tipoRegistro string, lat, lng *float64) (*VerificationResult, error)
	SyncUserDatabase(ctx context.Context, lastSync *time.Time) (*UserSyncResponse, error)
	UploadBulkRecords(ctx context.Context, records []BulkRecord) (*BulkUploadResponse, error)
}

// Options configure the HTTP client; all values come from configuration,
// never hardcoded.
type Options struct {
	BaseURL    string
	APIKey     string
	TerminalID string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type httpClient struct {
	opts   Options
	client *http.Client
}

// New creates the BioEntry API client.
func New(opts Options) Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &httpClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

func (c *httpClient) CheckConnectivity(ctx context.Context) bool {
	// Health checks get a short deadline so an unreachable server does not
	// hold up the verification path for the full API timeout.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.opts.BaseURL+"/terminal-health/"+url.PathEscape(c.opts.TerminalID), nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-API-Key", c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *httpClient) VerifyFaceAutomatic(ctx context.Context, image []byte, lat, lng *float64) (*VerificationResult, error) {
	fields := map[string]string{"terminal_id": c.opts.TerminalID}
	addLocation(fields, lat, lng)

	var result VerificationResult
	if err := c.doMultipart(ctx, "/verify-terminal/auto", image, fields, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) VerifyFaceManual(ctx context.Context, cedula string, image []byte, tipoRegistro string, lat, lng *float64) (*VerificationResult, error) {
	fields := map[string]string{
		"terminal_id":   c.opts.TerminalID,
		"cedula":        cedula,
		"tipo_registro": tipoRegistro,
	}
	addLocation(fields, lat, lng)

	var result VerificationResult
	if err := c.doMultipart(ctx, "/verify-terminal", image, fields, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) SyncUserDatabase(ctx context.Context, lastSync *time.Time) (*UserSyncResponse, error) {
	endpoint := c.opts.BaseURL + "/terminal-sync/" + url.PathEscape(c.opts.TerminalID)
	if lastSync != nil {
		endpoint += "?last_sync=" + url.QueryEscape(lastSync.UTC().Format(time.RFC3339))
	}

	var result UserSyncResponse
	if err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) UploadBulkRecords(ctx context.Context, records []BulkRecord) (*BulkUploadResponse, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to upload")
	}

	payload := map[string]interface{}{
		"terminal_id":    c.opts.TerminalID,
		"records":        records,
		"sync_timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal bulk payload: %w", err)
	}

	var result BulkUploadResponse
	if err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.opts.BaseURL+"/terminal-records/bulk", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doMultipart builds and sends a multipart form with the image and the
// given fields, retrying on transient failures.
func (c *httpClient) doMultipart(ctx context.Context, path string, image []byte, fields map[string]string, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "capture.jpg")
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("write image part: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	body := buf.Bytes()
	contentType := w.FormDataContentType()

	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.opts.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, out)
}

// doWithRetry sends the request, retrying server errors and transport
// failures with an escalating delay. Client errors (4xx) are terminal and
// never retried.
func (c *httpClient) doWithRetry(ctx context.Context, build func(context.Context) (*http.Request, error), out interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.opts.APIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Warn().Err(err).Int("attempt", attempt+1).Str("url", req.URL.Path).
				Msg("remote: transport error")
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// Client errors are terminal
			return &APIError{Status: resp.StatusCode, Detail: apiErrorDetail(resp.StatusCode, data)}
		default:
			lastErr = fmt.Errorf("server error: HTTP %d", resp.StatusCode)
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).
				Str("url", req.URL.Path).Msg("remote: server error")
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// APIError is a terminal client-side rejection (HTTP 4xx); retrying the
// same payload will not help.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Detail)
}

func apiErrorDetail(status int, body []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	return "HTTP " + strconv.Itoa(status)
}

func addLocation(fields map[string]string, lat, lng *float64) {
	if lat != nil && lng != nil {
		fields["lat"] = strconv.FormatFloat(*lat, 'f', -1, 64)
		fields["lng"] = strconv.FormatFloat(*lng, 'f', -1, 64)
	}
}
