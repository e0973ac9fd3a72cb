// Package collector pulls environment snapshots from remote machines by
// driving the collector agent over WinRM or SSH and reading the produced
// file back.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"enveye/internal/snapshot"
)

// AgentPaths holds where the collector agent binary lives on each remote
// platform.
type AgentPaths struct {
	Windows string
	Linux   string
}

// Request describes one remote collection.
type Request struct {
	VMIP      string `json:"vm_ip"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	AppFolder string `json:"app_folder"`
	AppType   string `json:"app_type"`
	VMType    string `json:"vm_type"`
	Label     string `json:"label"`
}

// Result is the pulled snapshot, ready to be stored.
type Result struct {
	Name    string
	Content []byte
}

var (
	ErrUnsupportedVMType = errors.New("collector: unsupported vm type")
	ErrSnapshotTimeout   = errors.New("collector: snapshot file not found after waiting")
)

const (
	// The remote agent is polled for its output file once a second.
	pollAttempts = 30
	pollInterval = time.Second
)

// Collector dispatches to the platform-specific runner.
type Collector struct {
	paths AgentPaths
}

func New(paths AgentPaths) *Collector {
	return &Collector{paths: paths}
}

// Collect runs the agent on the remote machine and returns the snapshot it
// wrote.
func (c *Collector) Collect(ctx context.Context, req Request) (*Result, error) {
	if c == nil {
		return nil, fmt.Errorf("collector is nil")
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	vmType := strings.ToLower(strings.TrimSpace(req.VMType))
	if vmType == "" {
		vmType = "windows"
	}
	name := snapshot.BuildName(req.VMIP, req.AppFolder, vmType, req.Label)

	switch vmType {
	case "windows":
		content, err := collectWindows(ctx, c.paths.Windows, req, name)
		if err != nil {
			return nil, err
		}
		return &Result{Name: name, Content: content}, nil
	case "linux", "macos", "mac":
		content, err := collectSSH(ctx, c.paths.Linux, req, name)
		if err != nil {
			return nil, err
		}
		return &Result{Name: name, Content: content}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVMType, req.VMType)
	}
}

func validate(req Request) error {
	if strings.TrimSpace(req.VMIP) == "" {
		return fmt.Errorf("collector: vm_ip is required")
	}
	if strings.TrimSpace(req.Username) == "" {
		return fmt.Errorf("collector: username is required")
	}
	if strings.TrimSpace(req.AppFolder) == "" {
		return fmt.Errorf("collector: app_folder is required")
	}
	return nil
}

// agentArgs builds the command line handed to the remote agent.
func agentArgs(req Request, outputPath string) string {
	parts := []string{
		fmt.Sprintf(`--app-folder "%s"`, req.AppFolder),
		"--app-type " + strings.TrimSpace(req.AppType),
		"--output " + outputPath,
	}
	if label := strings.TrimSpace(req.Label); label != "" {
		parts = append(parts, "--label "+label)
	}
	return strings.Join(parts, " ")
}
