package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

type stubLogReader struct {
	content string
	err     error
}

func (s stubLogReader) ReadLog(_ context.Context, _ string) (string, error) {
	return s.content, s.err
}

// tiny valid PNG header so DetectContentType sniffs image/png
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func TestCollectGathersBothSources(t *testing.T) {
	c := New(stubExtractor{text: "error code 7"}, stubLogReader{content: "ERROR boom"})
	bundle := c.Collect(context.Background(), Request{
		ErrorMessage: "  it broke  ",
		Screenshot:   pngBytes,
		LogPath:      "/var/log/app.log",
	})
	if bundle.ErrorMessage != "it broke" {
		t.Fatalf("error message = %q", bundle.ErrorMessage)
	}
	if bundle.ScreenshotText != "error code 7" {
		t.Fatalf("screenshot text = %q", bundle.ScreenshotText)
	}
	if bundle.LogContent != "ERROR boom" {
		t.Fatalf("log content = %q", bundle.LogContent)
	}
}

func TestCollectFailsSoft(t *testing.T) {
	c := New(
		stubExtractor{err: errors.New("ocr down")},
		stubLogReader{err: errors.New("no such file")},
	)
	bundle := c.Collect(context.Background(), Request{
		Screenshot: pngBytes,
		LogPath:    "/missing.log",
	})
	if bundle.ScreenshotText != "" {
		t.Fatalf("screenshot text = %q, want empty on failure", bundle.ScreenshotText)
	}
	if bundle.LogContent != "" {
		t.Fatalf("log content = %q, want empty on failure", bundle.LogContent)
	}
}

func TestCollectSkipsAbsentInputs(t *testing.T) {
	c := New(stubExtractor{text: "should not run"}, stubLogReader{content: "should not run"})
	bundle := c.Collect(context.Background(), Request{ErrorMessage: "just text"})
	if bundle.ScreenshotText != "" || bundle.LogContent != "" {
		t.Fatalf("optional steps ran without inputs: %+v", bundle)
	}
}

func TestValidateScreenshot(t *testing.T) {
	if err := ValidateScreenshot(nil); err != nil {
		t.Fatalf("empty screenshot should validate: %v", err)
	}
	if err := ValidateScreenshot(pngBytes); err != nil {
		t.Fatalf("png should validate: %v", err)
	}
	if err := ValidateScreenshot([]byte("plain text, definitely not an image")); err == nil {
		t.Fatalf("non-image bytes should be rejected")
	}
	big := make([]byte, MaxScreenshotBytes+1)
	copy(big, pngBytes)
	if err := ValidateScreenshot(big); err == nil {
		t.Fatalf("oversized screenshot should be rejected")
	}
}

func TestHTTPExtractorCleansText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"text": "  ERROR   code   42\n"}`)
	}))
	defer srv.Close()

	got, err := NewHTTPExtractor(srv.URL).ExtractText(context.Background(), pngBytes)
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if got != "ERROR code 42" {
		t.Fatalf("ExtractText() = %q, want %q", got, "ERROR code 42")
	}
}

func TestHTTPExtractorWithoutEndpoint(t *testing.T) {
	if _, err := NewHTTPExtractor("").ExtractText(context.Background(), pngBytes); err == nil {
		t.Fatalf("missing endpoint should error (collector absorbs it)")
	}
}

func TestLocalLogReaderCondenses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	content := "INFO fine\nERROR exploded\n  at pkg.fn(file.go:1)\nINFO fine again\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := NewLocalLogReader().ReadLog(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if got == "" || got == content {
		t.Fatalf("expected condensed content, got %q", got)
	}
}

func TestDecodeDataURL(t *testing.T) {
	raw, err := DecodeDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("DecodeDataURL() error = %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("DecodeDataURL() = %q", raw)
	}
	raw, err = DecodeDataURL("aGVsbG8=")
	if err != nil || string(raw) != "hello" {
		t.Fatalf("bare base64 decode = %q, %v", raw, err)
	}
}
