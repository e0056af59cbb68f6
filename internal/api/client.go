// Package api uploads recorded episodes to the episode viewer.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrRejected is returned when the viewer refuses the API key.
var ErrRejected = errors.New("viewer rejected the api key")

// UploadMetadata describes an exported episode file.
type UploadMetadata struct {
	TrackName string
	EpisodeID string
	Duration  float64 // seconds
	Steps     int
	Tag       string
}

// fields returns the form fields the viewer indexes the episode by.
func (m UploadMetadata) fields() [][2]string {
	return [][2]string{
		{"trackName", m.TrackName},
		{"episodeId", m.EpisodeID},
		{"episodeDuration", strconv.FormatFloat(m.Duration, 'f', 6, 64)},
		{"steps", strconv.Itoa(m.Steps)},
		{"tag", m.Tag},
	}
}

// Client talks to the episode viewer.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the viewer at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck returns nil if the viewer answers.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("healthcheck", resp)
}

// Upload streams the episode file at path to the viewer as a multipart form.
func (c *Client) Upload(ctx context.Context, path string, meta UploadMetadata) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open episode file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	form := multipart.NewWriter(pw)

	written := make(chan error, 1)
	go func() {
		err := writeForm(form, c.apiKey, filepath.Base(path), meta, file)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		written <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/episodes/add", pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("upload", resp); err != nil {
		// unblocks the writer if the viewer stopped reading
		_ = pr.Close()
		return err
	}
	return <-written
}

func writeForm(form *multipart.Writer, secret, name string, meta UploadMetadata, file io.Reader) error {
	if err := form.WriteField("secret", secret); err != nil {
		return err
	}
	if err := form.WriteField("filename", name); err != nil {
		return err
	}
	for _, f := range meta.fields() {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy episode file: %w", err)
	}
	return nil
}

// checkStatus turns a non-200 response into an error carrying the start of
// the response body.
func checkStatus(op string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", op, ErrRejected, resp.StatusCode)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, msg)
	}
	return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
}
