// manifest.go — YAML manifests describing a script set.
//
// A manifest is a list of entries with either inline source or a file
// path resolved relative to the manifest itself:
//
//	scripts:
//	  - name: greeting
//	    source: |
//	      print("hello")
//	  - name: handlers
//	    file: handlers.lua
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Manifest is the on-disk shape of a script set.
type Manifest struct {
	Scripts []ManifestEntry `yaml:"scripts"`
}

// ManifestEntry declares one script: exactly one of Source or File must
// be set.
type ManifestEntry struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, e := range m.Scripts {
		if e.Name == "" {
			return nil, fmt.Errorf("manifest entry %d: missing name", i+1)
		}
		if (e.Source == "") == (e.File == "") {
			return nil, fmt.Errorf("manifest entry '%s': exactly one of source or file required", e.Name)
		}
	}
	return &m, nil
}

// LoadManifest reads a manifest file and returns a populated store.
// File entries resolve relative to the manifest's directory.
func LoadManifest(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	store := NewStore()
	for _, e := range m.Scripts {
		src := e.Source
		if e.File != "" {
			b, err := os.ReadFile(filepath.Join(base, e.File))
			if err != nil {
				return nil, fmt.Errorf("manifest entry '%s': %w", e.Name, err)
			}
			src = string(b)
		}
		store.Add(e.Name, src)
	}
	return store, nil
}
