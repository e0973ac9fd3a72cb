package config

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// Diagnosis backend.
	AIVendor string
	LLMModel string

	// Snapshot storage.
	SnapshotDir string

	// Evidence gathering.
	OCREndpoint string

	// Flagged session feedback sink.
	FeedbackPath  string
	FeedbackPGDSN string

	// Remote collection agent locations.
	AgentPathWindows string
	AgentPathLinux   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8000", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:             *port,
		Env:              env,
		AIVendor:         strings.TrimSpace(os.Getenv("AI_VENDOR")),
		LLMModel:         strings.TrimSpace(os.Getenv("LLM_MODEL")),
		SnapshotDir:      firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_DIR")), "snapshots"),
		OCREndpoint:      strings.TrimSpace(os.Getenv("OCR_ENDPOINT")),
		FeedbackPath:     firstNonEmpty(strings.TrimSpace(os.Getenv("FEEDBACK_PATH")), "flagged_feedback.jsonl"),
		FeedbackPGDSN:    strings.TrimSpace(os.Getenv("FEEDBACK_PG_DSN")),
		AgentPathWindows: firstNonEmpty(strings.TrimSpace(os.Getenv("AGENT_PATH_WINDOWS")), `C:\Tools\Collector\collector_agent.exe`),
		AgentPathLinux:   firstNonEmpty(strings.TrimSpace(os.Getenv("AGENT_PATH_LINUX")), "/opt/collector/collector_agent"),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
