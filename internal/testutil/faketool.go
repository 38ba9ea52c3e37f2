// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FakeTool writes an executable shell script standing in for hashcat and
// returns its path
func FakeTool(tb testing.TB, body string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "hashcat")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		tb.Fatalf("failed to write fake tool: %v", err)
	}
	return path
}

// WriteFile writes content to name inside a new temp dir and returns the path
func WriteFile(tb testing.TB, name, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
