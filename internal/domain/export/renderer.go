package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrRenderFailed wraps every failure of the external renderer.
var ErrRenderFailed = errors.New("chart rendering failed")

// Format is the output format of an export.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
)

// ParseFormat accepts the query values clients send. Empty means pdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "image", "jpg", "jpeg":
		return FormatImage, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatImage {
		return "image/jpeg"
	}
	return "application/pdf"
}

func (f Format) Ext() string {
	if f == FormatImage {
		return ".jpg"
	}
	return ".pdf"
}

// Renderer turns a document into bytes of the requested format.
type Renderer interface {
	Render(ctx context.Context, doc Document, format Format) ([]byte, error)
}

// HTTPRenderer delegates to a Chromium conversion service exposing the
// Gotenberg form API.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, doc Document, format Format) ([]byte, error) {
	path := "/forms/chromium/convert/html"
	fields := map[string]string{
		"printBackground": "true",
		"marginTop":       "0.2",
		"marginBottom":    "0.2",
		"marginLeft":      "0.2",
		"marginRight":     "0.2",
	}
	if format == FormatImage {
		path = "/forms/chromium/screenshot/html"
		fields = map[string]string{
			"format":  "jpeg",
			"quality": "90",
			"width":   "800",
			"height":  "1200",
		}
	}

	body, contentType, err := htmlForm(doc.HTML, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Gotenberg-Output-Filename", doc.BaseName)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: renderer returned %d: %s", ErrRenderFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return out, nil
}

func htmlForm(html string, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// UnavailableRenderer stands in when no conversion service is configured.
// Every export fails with ErrRenderFailed.
type UnavailableRenderer struct{}

func (UnavailableRenderer) Render(context.Context, Document, Format) ([]byte, error) {
	return nil, fmt.Errorf("%w: no renderer configured", ErrRenderFailed)
}
