package snapshot

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Snapshot is one captured environment dump as produced by the collector
// agent.
type Snapshot struct {
	ApplicationName    string         `json:"application_name"`
	ApplicationType    string         `json:"application_type"`
	EnvironmentContext map[string]any `json:"environment_context"`
	Timestamp          string         `json:"timestamp"`
	Label              string         `json:"label,omitempty"`
}

// Parse decodes and sanity-checks a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: parse: %w", err)
	}
	return &s, nil
}

// BuildName derives the stored file name from collection metadata, the
// same shape the agent and the remote collector use:
// <host>_<app>_<VMTYPE>_<timestamp>[_<label>].json
func BuildName(hostname, appFolder, vmType, label string) string {
	host := strings.ReplaceAll(strings.TrimSpace(hostname), ".", "-")
	app := path.Base(strings.ReplaceAll(strings.TrimSpace(appFolder), "\\", "/"))
	app = strings.ReplaceAll(app, " ", "")
	app = strings.ReplaceAll(app, ".", "_")
	ts := time.Now().Format("20060102T150405")

	name := fmt.Sprintf("%s_%s_%s_%s", host, app, strings.ToUpper(strings.TrimSpace(vmType)), ts)
	if label = strings.TrimSpace(label); label != "" {
		name += "_" + label
	}
	return name + ".json"
}
