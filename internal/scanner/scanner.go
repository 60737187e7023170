// Package scanner submits stored blobs to an external malware detection
// service and interprets the verdict. The client fails closed: any network
// error, unexpected status or unreadable body is a scan failure, never a
// clean verdict.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInfected is returned when the service reports at least one positive
// detection for the submitted blob.
var ErrInfected = errors.New("infected file detected")

// ErrUnavailable wraps every transport or protocol failure while talking to
// the detection service. Callers treat it as a rejection, same as an
// infection; an unreachable scanner never passes a file as clean.
var ErrUnavailable = errors.New("scan service unavailable")

// Client talks to a VirusTotal-style file scanning endpoint.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// New builds a Client. timeout bounds the whole scan call including the
// upload of the blob body.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

// scanResponse mirrors the detection API's answer; a positive total means
// at least one engine flagged the file.
type scanResponse struct {
	MetaInfo struct {
		Total int `json:"total"`
	} `json:"meta_info"`
}

// Scan posts the blob at filePath to the detection service. It returns nil
// for a clean verdict, ErrInfected for a positive detection, and a wrapped
// error for every service or transport failure.
func (c *Client) Scan(ctx context.Context, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open blob for scan: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("build scan request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read blob for scan: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("x-apikey", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.MetaInfo.Total > 0 {
		return ErrInfected
	}
	return nil
}
