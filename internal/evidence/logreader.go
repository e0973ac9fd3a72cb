package evidence

import (
	"context"

	"enveye/internal/logscan"
)

// LocalLogReader reads an operator-supplied path from the gateway host and
// condenses it to the blocks worth showing a model.
type LocalLogReader struct {
	MaxLines  int
	MaxBlocks int
	MaxTokens int
	KeepBytes int
}

func NewLocalLogReader() *LocalLogReader {
	return &LocalLogReader{
		MaxLines:  200000,
		MaxBlocks: 30,
		MaxTokens: 10000,
		KeepBytes: 2000,
	}
}

func (r *LocalLogReader) ReadLog(_ context.Context, path string) (string, error) {
	full, err := logscan.Tail(path, r.MaxLines)
	if err != nil {
		return "", err
	}
	content := logscan.ExtractImportantBlocks(full, nil, r.MaxBlocks)
	return logscan.TruncateForPrompt(content, r.MaxTokens, r.KeepBytes), nil
}
