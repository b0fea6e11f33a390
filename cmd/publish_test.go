package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/pinpost/internal/pinpost"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPublishDryRun(t *testing.T) {
	out, err := runCommand(t, "publish", "--dry-run", "-t", "Hello", "-b", "b1",
		"--media-url", "https://cdn.example.com/a.png", "--hashtag", "intj", "-p", "pinterest,bluesky", "some", "words")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	for _, want := range []string{
		`[dry-run] would publish to pinterest: "Hello"`,
		`[dry-run] would publish to bluesky: "Hello"`,
		`[dry-run] description: "some words #intj"`,
		`[dry-run] media url: https://cdn.example.com/a.png (alt: "Hello")`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPublishRejectsDescriptionTwice(t *testing.T) {
	_, err := runCommand(t, "publish", "--dry-run", "-t", "Hello", "-m", "flag", "arg")
	if err == nil {
		t.Fatalf("expected error when description is given twice")
	}
}

func TestPublishMissingImage(t *testing.T) {
	_, err := runCommand(t, "publish", "--dry-run", "-t", "Hello", "--image", "nope.png")
	if !pinpost.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestPublishGuardFailsWithoutPlatforms(t *testing.T) {
	_, err := runCommand(t, "publish", "-t", "Hello", "-b", "b1", "--media-url", "https://cdn.example.com/a.png", "-p", "")
	if !pinpost.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o600); err != nil {
		t.Fatal(err)
	}
	file, err := readImage(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if file.Name != "cat.png" || file.ContentType != "image/png" {
		t.Fatalf("unexpected file: %s %s", file.Name, file.ContentType)
	}
}
