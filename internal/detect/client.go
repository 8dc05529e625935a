// Package detect submits a single image to the detection backend and
// returns the annotated result. It shares nothing with the poller.
package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PredictPath is the backend detection endpoint.
const PredictPath = "/predict"

// FieldName is the multipart field carrying the image.
const FieldName = "file"

// maxResultBytes bounds an annotated result image.
const maxResultBytes = 64 << 20

// ErrNoFile is returned when no image was given.
var ErrNoFile = errors.New("no image selected")

// RemoteError is a non-2xx answer from the backend. Message is the
// plain-text body, meant for the operator.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("detection failed with status %d", e.Status)
	}
	return fmt.Sprintf("detection failed with status %d: %s", e.Status, e.Message)
}

// Result is the annotated image. Format, Width and Height are filled when
// the bytes decode as a known image format.
type Result struct {
	Image       []byte
	ContentType string
	Format      string
	Width       int
	Height      int
}

// Client posts images to one backend.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a Client for the backend at baseURL. A nil client
// means an *http.Client with the given timeout.
func NewClient(baseURL string, client *http.Client, timeout time.Duration) *Client {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + PredictPath,
		client: client,
	}
}

// Detect uploads the image read from r as filename and waits for the result.
func (c *Client) Detect(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	if r == nil || filename == "" {
		return nil, ErrNoFile
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- writeForm(pw, writer, filename, r)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		_ = pr.Close()
		<-writeErrCh
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	_ = pr.Close()
	writeErr := <-writeErrCh
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return nil, fmt.Errorf("write upload: %w", writeErr)
	}

	res := &Result{Image: body, ContentType: resp.Header.Get("Content-Type")}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(body)); err == nil {
		res.Format, res.Width, res.Height = format, cfg.Width, cfg.Height
	}
	return res, nil
}

func writeForm(pw *io.PipeWriter, writer *multipart.Writer, filename string, r io.Reader) error {
	part, err := writer.CreateFormFile(FieldName, filename)
	if err == nil {
		_, err = io.Copy(part, r)
	}
	if err == nil {
		err = writer.Close()
	}
	pw.CloseWithError(err)
	return err
}
