package logscan

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultKeywords trigger a new important block when present in a line.
var DefaultKeywords = []string{"ERROR", "Exception", "Traceback", "CRITICAL", "Failed", "Caused by"}

var (
	dateTimeRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[\sT]\d{2}:\d{2}:\d{2}(?:[,\.]\d+)?`)
	timeOnlyRe = regexp.MustCompile(`\d{2}:\d{2}:\d{2}(?:[,\.]\d+)?`)
)

// Tail reads at most maxLines lines from the end of the file. Reading a
// huge log never loads more than the scanned lines into the result.
func Tail(path string, maxLines int) (string, error) {
	if maxLines <= 0 {
		maxLines = 200000
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("logscan: open %s: %w", path, err)
	}
	defer f.Close()

	lines := make([]string, 0, 256)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("logscan: read %s: %w", path, err)
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractImportantBlocks pulls keyword-triggered blocks out of a log,
// keeping stack-trace continuation lines (indented or blank lines after a
// hit), deduplicating blocks whose only difference is the timestamp, and
// limiting output to the latest maxBlocks unique blocks.
func ExtractImportantBlocks(logText string, keywords []string, maxBlocks int) string {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if maxBlocks <= 0 {
		maxBlocks = 30
	}

	var (
		blocks  []string
		current []string
		seen    = map[string]struct{}{}
	)
	commit := func() {
		if len(current) == 0 {
			return
		}
		block := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if block == "" {
			return
		}
		norm := normalizeBlock(block)
		if _, dup := seen[norm]; dup {
			return
		}
		seen[norm] = struct{}{}
		blocks = append(blocks, block)
	}

	for _, line := range strings.Split(logText, "\n") {
		switch {
		case containsAny(line, keywords):
			commit()
			current = append(current, line)
		case len(current) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || strings.TrimSpace(line) == ""):
			current = append(current, line)
		default:
			commit()
		}
	}
	commit()

	if len(blocks) > maxBlocks {
		blocks = blocks[len(blocks)-maxBlocks:]
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// EstimateTokens is a rough byte-based token estimate, enough to gate
// prompt truncation.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / 4
}

// TruncateForPrompt caps content whose token estimate exceeds maxTokens.
func TruncateForPrompt(content string, maxTokens, keepBytes int) string {
	if EstimateTokens(content) <= maxTokens {
		return content
	}
	if keepBytes > len(content) {
		keepBytes = len(content)
	}
	return content[:keepBytes] + "\n\n[Log truncated due to size]"
}

func normalizeBlock(block string) string {
	clean := dateTimeRe.ReplaceAllString(block, "")
	clean = timeOnlyRe.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

func containsAny(line string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(line, k) {
			return true
		}
	}
	return false
}
