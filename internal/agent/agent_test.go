package agent

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestScanAppFolder(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"app.dll":            "binary",
		"settings.json":      `{"db":"host"}`,
		"web.config":         "<configuration/>",
		"readme.txt":         "ignored",
		"sub/deps.xml":       "<deps/>",
		"sub/plugin.so":      "elf",
		"sub/ignored.tmp":    "ignored",
		"sub/deep/lib.dylib": "macho",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	results := ScanAppFolder(dir)
	if len(results) != 6 {
		t.Fatalf("scanned %d files, want 6: %v", len(results), results)
	}
	entry, ok := results["settings.json"]
	if !ok {
		t.Fatalf("settings.json not scanned: %v", results)
	}
	if entry["size_bytes"].(int64) != int64(len(`{"db":"host"}`)) {
		t.Fatalf("size_bytes = %v", entry["size_bytes"])
	}
	hash, _ := entry["sha256"].(string)
	if len(hash) != 64 {
		t.Fatalf("sha256 = %q", hash)
	}
	if _, ok := results["readme.txt"]; ok {
		t.Fatalf("readme.txt should not be scanned")
	}
}

func TestScanAppFolderMissingDir(t *testing.T) {
	results := ScanAppFolder(filepath.Join(t.TempDir(), "missing"))
	if _, ok := results["error"]; !ok {
		t.Fatalf("expected error entry, got %v", results)
	}
}

func TestReadEnvVariables(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	env := ReadEnvVariables([]string{"APP_ENV", "ENVEYE_TEST_DOES_NOT_EXIST"})
	if env["APP_ENV"] != "staging" {
		t.Fatalf("APP_ENV = %q", env["APP_ENV"])
	}
	if env["ENVEYE_TEST_DOES_NOT_EXIST"] != "Not Set" {
		t.Fatalf("unset variable = %q", env["ENVEYE_TEST_DOES_NOT_EXIST"])
	}
}

func TestBuildSnapshotShape(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.config"), []byte("<c/>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap := BuildSnapshot(Options{AppFolder: dir, AppType: "web", Label: "baseline"})
	if snap.ApplicationName != filepath.Base(dir) {
		t.Fatalf("ApplicationName = %q", snap.ApplicationName)
	}
	if snap.ApplicationType != "web" || snap.Label != "baseline" {
		t.Fatalf("snapshot metadata = %+v", snap)
	}
	for _, key := range []string{"os_info", "critical_environment_variables", "app_folder_files", "required_services_status"} {
		if _, ok := snap.EnvironmentContext[key]; !ok {
			t.Fatalf("environment_context missing %q", key)
		}
	}
	if snap.Timestamp == "" {
		t.Fatalf("timestamp not set")
	}
}

func TestUpload(t *testing.T) {
	var gotHostname, gotAppPath string
	var gotSnapshot []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotHostname = r.FormValue("hostname")
		gotAppPath = r.FormValue("app_path")
		file, _, err := r.FormFile("snapshot")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotSnapshot, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := os.WriteFile(path, []byte(`{"application_name":"svc"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Upload(context.Background(), srv.URL, path, "vm-01", "/srv/svc"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotHostname != "vm-01" || gotAppPath != "/srv/svc" {
		t.Fatalf("form fields = %q, %q", gotHostname, gotAppPath)
	}
	if string(gotSnapshot) != `{"application_name":"svc"}` {
		t.Fatalf("snapshot body = %s", gotSnapshot)
	}
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Upload(context.Background(), srv.URL, path, "vm-01", "/srv/svc"); err == nil {
		t.Fatalf("Upload() accepted a 500 response")
	}
}
