package collector

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/masterzen/winrm"
)

const winrmPort = 5985

// collectWindows launches the agent over WinRM, waits for the snapshot
// file and pulls it back base64 encoded.
func collectWindows(ctx context.Context, agentPath string, req Request, name string) ([]byte, error) {
	if strings.TrimSpace(agentPath) == "" {
		agentPath = `C:\Tools\Collector\collector_agent.exe`
	}
	agentDir := winDir(agentPath)
	remotePath := agentDir + `\` + name

	endpoint := winrm.NewEndpoint(req.VMIP, winrmPort, false, false, nil, nil, nil, 30*time.Second)
	client, err := winrm.NewClient(endpoint, req.Username, req.Password)
	if err != nil {
		return nil, fmt.Errorf("winrm connect %s: %w", req.VMIP, err)
	}

	runCmd := fmt.Sprintf("Start-Process -FilePath '%s' -ArgumentList '%s' -Wait -NoNewWindow",
		agentPath, agentArgs(req, name))
	log.Printf("collector: running agent on %s over winrm", req.VMIP)
	if _, stderr, code, err := runPS(ctx, client, runCmd); err != nil {
		return nil, fmt.Errorf("winrm run agent: %w", err)
	} else if code != 0 {
		return nil, fmt.Errorf("winrm agent exited with code %d: %s", code, strings.TrimSpace(stderr))
	}

	if err := pollWindows(ctx, client, remotePath); err != nil {
		return nil, err
	}

	readCmd := fmt.Sprintf("$b = Get-Content -Path '%s' -Raw; [Convert]::ToBase64String([Text.Encoding]::UTF8.GetBytes($b))", remotePath)
	stdout, stderr, code, err := runPS(ctx, client, readCmd)
	if err != nil {
		return nil, fmt.Errorf("winrm read snapshot: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("winrm read snapshot exited with code %d: %s", code, strings.TrimSpace(stderr))
	}
	encoded := strings.TrimSpace(stdout)
	if encoded == "" {
		return nil, fmt.Errorf("winrm read snapshot: empty response")
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("winrm decode snapshot: %w", err)
	}
	return content, nil
}

func pollWindows(ctx context.Context, client *winrm.Client, remotePath string) error {
	check := fmt.Sprintf("Test-Path '%s'", remotePath)
	for i := 0; i < pollAttempts; i++ {
		stdout, _, _, err := runPS(ctx, client, check)
		if err == nil && strings.Contains(stdout, "True") {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return ErrSnapshotTimeout
}

func runPS(ctx context.Context, client *winrm.Client, command string) (string, string, int, error) {
	return client.RunWithContextWithString(ctx, winrm.Powershell(command), "")
}

// winDir is filepath.Dir for a Windows path regardless of the host OS.
func winDir(p string) string {
	return strings.ReplaceAll(path.Dir(strings.ReplaceAll(p, `\`, "/")), "/", `\`)
}
