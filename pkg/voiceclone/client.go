// Package voiceclone is the HTTP client for the pixelholo voice-cloning
// inference service. It covers the full workflow surface: sample upload,
// preprocessing, training, profile listing, and the newline-delimited
// synthesis stream consumed by the session layer.
package voiceclone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	uploadEndpoint     = "/upload"
	preprocessEndpoint = "/preprocess"
	trainEndpoint      = "/train"
	streamEndpoint     = "/stream"
	profilesEndpoint   = "/profiles"
	livenessEndpoint   = "/docs"

	defaultTimeout = 30 * time.Second
)

// StatusError reports a non-success HTTP status from the service.
type StatusError struct {
	Endpoint string
	Status   int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("voiceclone: %s returned status %d", e.Endpoint, e.Status)
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the timeout applied to non-streaming calls (upload,
// profiles, liveness). Streaming calls are governed only by their context
// and the transport's connection timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to inject custom
// transports in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to a pixelholo inference service. It is safe for concurrent
// use; independent calls may run in parallel.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient has no client-side timeout: a synthesis or training
	// stream legitimately stays open for minutes.
	streamClient *http.Client
}

// New creates a Client targeting the service at baseURL
// (e.g. "http://localhost:8000"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("voiceclone: baseURL must not be empty")
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends one raw audio sample for profile via POST /upload (multipart:
// profile name + file) and returns the server-assigned storage location.
func (c *Client) Upload(ctx context.Context, profile, filename string, file io.Reader) (UploadResult, error) {
	if profile == "" {
		return UploadResult{}, errors.New("voiceclone: profile must not be empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("profile", profile); err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: write profile field: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: create form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: copy file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadEndpoint, &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: POST %s: %w", uploadEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, &StatusError{Endpoint: uploadEndpoint, Status: resp.StatusCode}
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("voiceclone: decode upload response: %w", err)
	}
	return result, nil
}

// Preprocess starts audio preprocessing for a profile via POST /preprocess
// and returns the chunked progress stream. The caller owns the returned body
// and must close it; lines are plain progress text.
func (c *Client) Preprocess(ctx context.Context, req PreprocessRequest) (io.ReadCloser, error) {
	return c.postStream(ctx, preprocessEndpoint, req)
}

// Train starts model training for a profile via POST /train and returns the
// chunked progress stream. The caller owns the returned body.
func (c *Client) Train(ctx context.Context, req TrainRequest) (io.ReadCloser, error) {
	return c.postStream(ctx, trainEndpoint, req)
}

// Stream starts a synthesis request via POST /stream and returns the
// newline-delimited JSON stream of progress lines, audio chunks, and the
// terminal done record. The caller owns the returned body; cancelling ctx
// aborts the stream.
func (c *Client) Stream(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	return c.postStream(ctx, streamEndpoint, req)
}

// postStream issues a JSON POST and hands back the raw response body for
// incremental consumption. The body is only returned on a 200 status.
func (c *Client) postStream(ctx context.Context, endpoint string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("voiceclone: marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("voiceclone: create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voiceclone: POST %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// Profiles retrieves the voice profile inventory via GET /profiles.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+profilesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("voiceclone: create profiles request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voiceclone: GET %s: %w", profilesEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: profilesEndpoint, Status: resp.StatusCode}
	}

	var pr profilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("voiceclone: decode profiles response: %w", err)
	}
	return pr.Profiles, nil
}

// Ping probes GET /docs as a liveness check and returns nil when the service
// answers with a success status.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+livenessEndpoint, nil)
	if err != nil {
		return fmt.Errorf("voiceclone: create liveness request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voiceclone: GET %s: %w", livenessEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{Endpoint: livenessEndpoint, Status: resp.StatusCode}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
