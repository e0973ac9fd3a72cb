package collector

import (
	"context"
	"fmt"
	"log"
	"net"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const sshPort = "22"

// collectSSH launches the agent over SSH on a Linux or macOS host, waits
// for the snapshot file and cats it back.
func collectSSH(ctx context.Context, agentPath string, req Request, name string) ([]byte, error) {
	if strings.TrimSpace(agentPath) == "" {
		agentPath = "/opt/collector/collector_agent"
	}
	agentDir := path.Dir(agentPath)
	remotePath := agentDir + "/" + name

	cfg := &ssh.ClientConfig{
		User:            req.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(req.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(req.VMIP, sshPort), cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh connect %s: %w", req.VMIP, err)
	}
	defer client.Close()

	if _, err := runSSH(client, "mkdir -p "+agentDir); err != nil {
		return nil, fmt.Errorf("ssh prepare dir: %w", err)
	}

	cmd := agentPath + " " + agentArgs(req, remotePath)
	log.Printf("collector: running agent on %s over ssh", req.VMIP)
	if out, err := runSSH(client, cmd); err != nil {
		return nil, fmt.Errorf("ssh run agent: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if err := pollSSH(ctx, client, remotePath); err != nil {
		return nil, err
	}

	content, err := runSSH(client, "cat "+remotePath)
	if err != nil {
		return nil, fmt.Errorf("ssh read snapshot: %w", err)
	}
	return content, nil
}

func pollSSH(ctx context.Context, client *ssh.Client, remotePath string) error {
	check := fmt.Sprintf("test -f %s && echo EXISTS", remotePath)
	for i := 0; i < pollAttempts; i++ {
		if out, err := runSSH(client, check); err == nil && strings.Contains(string(out), "EXISTS") {
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

// runSSH runs one command on a fresh session and returns its stdout.
func runSSH(client *ssh.Client, cmd string) ([]byte, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Output(cmd)
}
