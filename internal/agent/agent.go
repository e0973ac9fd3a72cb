// Package agent collects an environment snapshot on the machine it runs
// on: application folder inventory, OS details, critical environment
// variables, and service health.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"enveye/internal/snapshot"
)

// scannedExtensions are the file types that matter for configuration
// drift between two installs of the same application.
var scannedExtensions = map[string]bool{
	".dll":    true,
	".so":     true,
	".dylib":  true,
	".config": true,
	".json":   true,
	".xml":    true,
}

// criticalEnvKeys are always captured; operators add more via services.
var criticalEnvKeys = []string{"APP_ENV", "ENVIRONMENT"}

// Options drives one collection run.
type Options struct {
	AppFolder     string
	AppType       string
	Output        string
	Label         string
	UploadURL     string
	ExtraServices []string
}

// Run builds the snapshot, writes it next to the executable (or to the
// given output path), and optionally uploads it. It returns the path the
// snapshot was written to.
func Run(ctx context.Context, opts Options) (string, error) {
	if strings.TrimSpace(opts.AppFolder) == "" || strings.TrimSpace(opts.AppType) == "" {
		return "", fmt.Errorf("agent: --app-folder and --app-type are required")
	}

	snap := BuildSnapshot(opts)
	path, err := resolveOutputPath(opts)
	if err != nil {
		return "", err
	}
	if err := writeSnapshot(snap, path); err != nil {
		return "", fmt.Errorf("agent: write snapshot: %w", err)
	}
	log.Printf("snapshot written to %s", path)

	if url := strings.TrimSpace(opts.UploadURL); url != "" {
		if err := Upload(ctx, url, path, Hostname(), opts.AppFolder); err != nil {
			return path, fmt.Errorf("agent: upload: %w", err)
		}
		log.Printf("snapshot uploaded to %s", url)
	}
	return path, nil
}

// BuildSnapshot assembles the environment context without touching disk
// beyond the scanned folder.
func BuildSnapshot(opts Options) snapshot.Snapshot {
	services := DefaultServices()
	for _, svc := range opts.ExtraServices {
		if svc = strings.TrimSpace(svc); svc != "" {
			services = append(services, svc)
		}
	}

	return snapshot.Snapshot{
		ApplicationName: filepath.Base(opts.AppFolder),
		ApplicationType: strings.TrimSpace(opts.AppType),
		EnvironmentContext: map[string]any{
			"os_info":                        OSInfo(),
			"critical_environment_variables": ReadEnvVariables(criticalEnvKeys),
			"app_folder_files":               ScanAppFolder(opts.AppFolder),
			"required_services_status":       ServiceStatuses(services),
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Label:     strings.TrimSpace(opts.Label),
	}
}

func OSInfo() map[string]string {
	return map[string]string{
		"name":         runtime.GOOS,
		"architecture": runtime.GOARCH,
	}
}

func ReadEnvVariables(keys []string) map[string]string {
	env := make(map[string]string, len(keys))
	for _, key := range keys {
		val, found := os.LookupEnv(key)
		if !found {
			val = "Not Set"
		}
		env[key] = val
	}
	return env
}

// ScanAppFolder walks the application folder and records size, mtime, and
// content hash for every configuration-relevant file.
func ScanAppFolder(folder string) map[string]map[string]any {
	results := make(map[string]map[string]any)

	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !scannedExtensions[filepath.Ext(path)] {
			return nil
		}
		relPath, relErr := filepath.Rel(folder, path)
		if relErr != nil {
			relPath = path
		}
		results[relPath] = map[string]any{
			"size_bytes": info.Size(),
			"modified":   info.ModTime().Format(time.RFC3339),
			"sha256":     fileSHA256(path),
		}
		return nil
	})
	if err != nil {
		results["error"] = map[string]any{"message": err.Error()}
	}
	return results
}

func fileSHA256(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return "error: " + err.Error()
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "error: " + err.Error()
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// ServiceStatuses queries each service through the platform's service
// manager. Errors are recorded as the status value so one broken service
// never aborts a collection.
func ServiceStatuses(services []string) map[string]string {
	statuses := make(map[string]string, len(services))
	for _, svc := range services {
		statuses[svc] = serviceStatus(svc)
	}
	return statuses
}

func serviceStatus(service string) string {
	switch runtime.GOOS {
	case "linux":
		return runCmd("systemctl", "is-active", service)
	case "darwin":
		return runCmd("launchctl", "list", service)
	case "windows":
		return runCmd("powershell", "Get-Service", "-Name", service, "|", "Select-Object", "-ExpandProperty", "Status")
	default:
		return "unsupported platform"
	}
}

func runCmd(name string, args ...string) string {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "error: " + err.Error()
	}
	return strings.TrimSpace(string(out))
}

// DefaultServices lists the services worth checking per platform.
func DefaultServices() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"W3SVC", "MSSQL$SQLEXPRESS", "MongoDB", "RabbitMQ", "AppHostSvc", "WinRM"}
	case "linux":
		return []string{"nginx", "apache2", "mysql", "mariadb", "postgresql", "mongodb", "redis", "docker", "sshd", "systemd-journald"}
	case "darwin":
		return []string{"homebrew.mxcl.nginx", "homebrew.mxcl.postgresql", "homebrew.mxcl.mongodb-community", "com.apple.sshd"}
	default:
		return []string{}
	}
}

func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func resolveOutputPath(opts Options) (string, error) {
	if out := strings.TrimSpace(opts.Output); out != "" {
		if filepath.IsAbs(out) {
			return out, nil
		}
		baseDir, err := executableDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(baseDir, out), nil
	}

	baseDir, err := executableDir()
	if err != nil {
		return "", err
	}
	name := snapshot.BuildName(Hostname(), opts.AppFolder, runtime.GOOS, opts.Label)
	return filepath.Join(baseDir, name), nil
}

func executableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("agent: resolve executable path: %w", err)
	}
	return filepath.Dir(execPath), nil
}

func writeSnapshot(snap snapshot.Snapshot, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snap)
}
