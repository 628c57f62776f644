package offline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
version: " v12 "
shell:
  - ./
  - index.html
  - ./styles.css
  - /styles.css
  - /.well-known/assetlinks.json
`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() unexpected error: %v", err)
	}
	if m.Version != "v12" {
		t.Errorf("Version = %q, want v12", m.Version)
	}
	if m.Entry != DefaultEntry {
		t.Errorf("Entry = %q, want %q", m.Entry, DefaultEntry)
	}
	if m.BucketName() != "stacklink-v12" {
		t.Errorf("BucketName() = %q, want stacklink-v12", m.BucketName())
	}

	want := []string{"/", "/index.html", "/styles.css", "/.well-known/assetlinks.json"}
	if len(m.Shell) != len(want) {
		t.Fatalf("Shell = %v, want %v", m.Shell, want)
	}
	for i := range want {
		if m.Shell[i] != want[i] {
			t.Errorf("Shell[%d] = %q, want %q", i, m.Shell[i], want[i])
		}
	}
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing version", "shell:\n  - /\n"},
		{"blank version", "version: '  '\n"},
		{"invalid yaml", "version: [v1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.data)); err == nil {
				t.Error("ParseManifest() expected error")
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest("")
	if err != nil {
		t.Fatalf("LoadManifest(\"\") unexpected error: %v", err)
	}
	if m.Version != DefaultVersion || len(m.Shell) != 5 {
		t.Errorf("LoadManifest(\"\") = %+v, want built-in manifest", m)
	}

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte("version: v20\nentry: app.html\nshell: [app.html]\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() unexpected error: %v", err)
	}
	m, err = LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() unexpected error: %v", err)
	}
	if m.Entry != "/app.html" || m.Shell[0] != "/app.html" {
		t.Errorf("LoadManifest() = %+v", m)
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadManifest(missing) expected error")
	}
}
