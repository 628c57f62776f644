package offline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// BucketPrefix is prepended to the manifest version to name the bucket.
	BucketPrefix = "stacklink-"

	// DefaultVersion is the version of the built-in manifest.
	DefaultVersion = "v11"

	// DefaultEntry is the canonical entry page key.
	DefaultEntry = "/index.html"
)

// Manifest is the app-shell contract between deploys and the controller.
//
// Example file:
//
//	version: v12
//	entry: /index.html
//	shell:
//	  - /
//	  - /index.html
//	  - /styles.css
type Manifest struct {
	Version string   `yaml:"version"`
	Entry   string   `yaml:"entry"`
	Shell   []string `yaml:"shell"`
}

// DefaultManifest returns the built-in app shell.
func DefaultManifest() *Manifest {
	return &Manifest{
		Version: DefaultVersion,
		Entry:   DefaultEntry,
		Shell: []string{
			"/",
			"/index.html",
			"/styles.css",
			"/js/main.js",
			"/manifest.json",
		},
	}
}

// LoadManifest reads a YAML manifest. An empty path yields DefaultManifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and normalizes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// BucketName is the only bucket the controller treats as current.
func (m *Manifest) BucketName() string {
	return BucketPrefix + m.Version
}

// normalize trims and roots every path, drops duplicates and defaults Entry.
func (m *Manifest) normalize() error {
	m.Version = strings.TrimSpace(m.Version)
	if m.Version == "" {
		return errors.New("manifest version is required")
	}

	m.Entry = rooted(m.Entry)
	if m.Entry == "/" {
		m.Entry = DefaultEntry
	}

	seen := make(map[string]bool, len(m.Shell))
	shell := make([]string, 0, len(m.Shell))
	for _, p := range m.Shell {
		p = rooted(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		shell = append(shell, p)
	}
	m.Shell = shell
	return nil
}

// rooted turns "./index.html" or "index.html" into "/index.html".
func rooted(p string) string {
	p = strings.TrimSpace(p)
	if p == "." || strings.HasPrefix(p, "./") {
		p = p[1:]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
