package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRelayURLs(t *testing.T) {
	base, ws := relayURLs("bridge.example.com:8002", false)
	if base.String() != "http://bridge.example.com:8002" {
		t.Fatalf("unexpected base url %s", base.String())
	}
	if ws.String() != "ws://bridge.example.com:8002/bot" {
		t.Fatalf("unexpected ws url %s", ws.String())
	}

	base, ws = relayURLs("bridge.example.com", true)
	if base.Scheme != "https" || ws.Scheme != "wss" {
		t.Fatalf("secure urls should use https/wss, got %s %s", base.Scheme, ws.Scheme)
	}
}

func TestLoadAllowedRunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowed.txt")
	content := "# accents\néü\n\nñ\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	allowed, err := loadAllowedRunes(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, r := range "éüñ" {
		if _, ok := allowed[r]; !ok {
			t.Fatalf("rune %q should be allowed", r)
		}
	}
	if _, ok := allowed['#']; ok {
		t.Fatal("comment lines should be skipped")
	}
}

func TestLoadAllowedRunesMissingFile(t *testing.T) {
	allowed, err := loadAllowedRunes(filepath.Join(t.TempDir(), "absent.txt"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if allowed != nil {
		t.Fatalf("expected nil map, got %v", allowed)
	}
}
