package evidence

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MaxScreenshotBytes caps uploaded screenshots before any collaborator
// call is made.
const MaxScreenshotBytes = 5 << 20

// Bundle is the transient evidence attached to a diagnosis request. Built
// fresh per start request and not retained afterwards.
type Bundle struct {
	ErrorMessage   string
	ScreenshotText string
	LogContent     string
}

// Request describes what the operator supplied. Screenshot and LogPath are
// both optional and independent.
type Request struct {
	ErrorMessage string
	Screenshot   []byte
	LogPath      string
}

// TextExtractor turns a screenshot into text. Implementations must treat
// their own failures as recoverable.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// LogReader returns the content of an operator-supplied log path.
type LogReader interface {
	ReadLog(ctx context.Context, path string) (string, error)
}

// Collector runs the optional enrichment steps before a diagnosis request
// is assembled.
type Collector struct {
	ocr  TextExtractor
	logs LogReader
}

func New(ocr TextExtractor, logs LogReader) *Collector {
	return &Collector{ocr: ocr, logs: logs}
}

// ValidateScreenshot enforces the client-local constraints: image MIME
// type and size cap. It runs before any network call.
func ValidateScreenshot(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) > MaxScreenshotBytes {
		return fmt.Errorf("evidence: screenshot exceeds %d MB limit", MaxScreenshotBytes>>20)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return fmt.Errorf("evidence: screenshot must be an image file")
	}
	return nil
}

// Collect runs OCR extraction and the log read concurrently and returns
// once both have resolved. Each step fails soft: an error degrades that
// field to empty and is only logged, never propagated. The returned Bundle
// is therefore always usable.
func (c *Collector) Collect(ctx context.Context, req Request) Bundle {
	bundle := Bundle{ErrorMessage: strings.TrimSpace(req.ErrorMessage)}

	g, gctx := errgroup.WithContext(ctx)
	if len(req.Screenshot) > 0 && c.ocr != nil {
		g.Go(func() error {
			text, err := c.ocr.ExtractText(gctx, req.Screenshot)
			if err != nil {
				log.Printf("evidence: screenshot OCR failed: %v", err)
				return nil
			}
			bundle.ScreenshotText = text
			return nil
		})
	}
	if strings.TrimSpace(req.LogPath) != "" && c.logs != nil {
		g.Go(func() error {
			content, err := c.logs.ReadLog(gctx, strings.TrimSpace(req.LogPath))
			if err != nil {
				log.Printf("evidence: log read failed for %s: %v", req.LogPath, err)
				return nil
			}
			bundle.LogContent = content
			return nil
		})
	}
	_ = g.Wait()
	return bundle
}
