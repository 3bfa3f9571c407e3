package utils

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShellEscape(t *testing.T) {
	tests := map[string]string{
		"":            "''",
		"plain":       "'plain'",
		"it's":        `'it'"'"'s'`,
		"a b; rm -rf": "'a b; rm -rf'",
	}
	for in, want := range tests {
		if got := ShellEscape(in); got != want {
			t.Errorf("ShellEscape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPromptFrom(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptFrom(strings.NewReader("  abc123  \nignored\n"), &out, "Enter video ID")
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc123" || out.String() != "Enter video ID: " {
		t.Errorf("got %q, prompt %q", got, out.String())
	}

	if got, err := PromptFrom(strings.NewReader("no newline"), &out, "x"); err != nil || got != "no newline" {
		t.Errorf("EOF line = %q, %v", got, err)
	}
	if _, err := PromptFrom(strings.NewReader(""), &out, "x"); err == nil {
		t.Error("empty input should fail")
	}
}

func TestWriteAndReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	in := map[string]string{"word": "<deprecated>", "meaning": "非推奨"}
	if err := WriteJSONFile(path, in, "    "); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasSuffix(string(raw), "\n") || !strings.Contains(string(raw), "<deprecated>") || !strings.Contains(string(raw), "非推奨") {
		t.Errorf("unexpected file content %q", raw)
	}

	var out map[string]string
	if err := ReadJSONFile(path, &out); err != nil {
		t.Fatal(err)
	}
	if out["meaning"] != "非推奨" {
		t.Errorf("read back %v", out)
	}
	if err := ReadJSONFile(filepath.Join(t.TempDir(), "missing.json"), &out); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio", "word")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dir) {
		t.Fatal("EnsureDir did not create the directory")
	}
	if err := RemoveIfExists(dir); err != nil {
		t.Fatal(err)
	}
	if DirExists(dir) {
		t.Error("directory still exists")
	}
	if err := RemoveIfExists(dir); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestSHA256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := SHA256File(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("sha256 = %s", got)
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := RunCommand(context.Background(), dir, "pwd && echo hi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hi") {
		t.Errorf("output = %q", out)
	}
	if _, err := RunCommand(context.Background(), dir, "exit 3"); err == nil {
		t.Error("expected failure")
	}
}
