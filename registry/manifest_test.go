package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
scripts:
  - name: greeting
    source: |
      print("hello")
  - name: handlers
    file: handlers.lua
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Scripts) != 2 {
		t.Fatalf("got %d entries", len(m.Scripts))
	}
	if m.Scripts[0].Name != "greeting" || !strings.Contains(m.Scripts[0].Source, "hello") {
		t.Fatalf("entry 0 = %+v", m.Scripts[0])
	}
	if m.Scripts[1].File != "handlers.lua" {
		t.Fatalf("entry 1 = %+v", m.Scripts[1])
	}
}

func TestParseManifestValidation(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"missing name", "scripts:\n  - source: x = 1\n", "missing name"},
		{"neither source nor file", "scripts:\n  - name: a\n", "exactly one"},
		{"both source and file", "scripts:\n  - name: a\n    source: x = 1\n    file: a.lua\n", "exactly one"},
		{"bad yaml", "scripts: [", "parse manifest"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.in))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ext.lua"), []byte("x = 10"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := "scripts:\n  - name: inline\n    source: y = 1\n  - name: external\n    file: ext.lua\n"
	path := filepath.Join(dir, "scripts.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	list := store.List()
	if len(list) != 2 {
		t.Fatalf("got %d scripts", len(list))
	}
	if list[0].Name != "inline" || list[0].Source != "y = 1" {
		t.Fatalf("inline entry = %+v", list[0])
	}
	if list[1].Name != "external" || list[1].Source != "x = 10" {
		t.Fatalf("external entry = %+v", list[1])
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.yaml")
	manifest := "scripts:\n  - name: gone\n    file: nope.lua\n"
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("err = %v", err)
	}
}
