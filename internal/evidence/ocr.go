package evidence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	nonPrintableRe = regexp.MustCompile(`[^\x20-\x7E]+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// HTTPExtractor calls an external OCR service that accepts a base64 image
// and returns extracted text.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPExtractor(endpoint string) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if e == nil || e.endpoint == "" {
		return "", fmt.Errorf("evidence: no OCR endpoint configured")
	}
	payload, err := json.Marshal(map[string]string{
		"base64_image": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("evidence: ocr service returned %s: %s", resp.Status, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return CleanText(out.Text), nil
}

// CleanText strips non-printable characters and collapses whitespace so
// OCR artifacts do not pollute prompts.
func CleanText(text string) string {
	text = nonPrintableRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// DecodeDataURL accepts both a bare base64 payload and a data URL
// (data:image/png;base64,....) as produced by browser file readers.
func DecodeDataURL(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if idx := strings.LastIndex(raw, ","); idx >= 0 && strings.Contains(raw[:idx+1], ";base64,") {
		raw = raw[idx+1:]
	}
	return base64.StdEncoding.DecodeString(raw)
}
