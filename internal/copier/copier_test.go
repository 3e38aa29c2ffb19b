package copier

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectContentFormatPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.jpg")
	writeBytes(t, path, append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 10)...))
	if got := DetectFormat(path); got != FormatPNG {
		t.Errorf("expected PNG detection, got %v", got)
	}
}

func TestDetectContentFormatUnknownForGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	writeBytes(t, path, []byte{0x01, 0x02, 0x03})
	if got := DetectFormat(path); got != FormatUnknown {
		t.Errorf("expected unknown, got %v", got)
	}
}

func TestFixExtensionIfMismatchRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeBytes(t, path, append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 10)...))

	newPath, err := FixExtensionIfMismatch(nil, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newPath != filepath.Join(dir, "photo.png") {
		t.Errorf("expected rename to photo.png, got %s", newPath)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("expected renamed file to exist: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected original path to no longer exist")
	}
}

func TestFixExtensionIfMismatchLeavesMatchingExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	writeBytes(t, path, append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 10)...))

	newPath, err := FixExtensionIfMismatch(nil, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newPath != path {
		t.Errorf("expected no rename, got %s", newPath)
	}
}

func TestFixExtensionIfMismatchSkipsWhenTargetExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeBytes(t, path, append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 10)...))
	writeBytes(t, filepath.Join(dir, "photo.png"), []byte("already here"))

	newPath, err := FixExtensionIfMismatch(nil, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newPath != path {
		t.Errorf("expected rename to be skipped when target exists, got %s", newPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected original to still exist: %v", err)
	}
}

func TestDestinationComputesRelativePath(t *testing.T) {
	dest, err := Destination("/in/sub/file.txt", "/in", "/out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/out", "sub", "file.txt")
	if dest != want {
		t.Errorf("got %s, want %s", dest, want)
	}
}

func TestCopyUnsupportedCreatesDirsAndCopiesBytes(t *testing.T) {
	srcRoot := t.TempDir()
	outRoot := t.TempDir()
	srcFile := filepath.Join(srcRoot, "docs", "readme.txt")
	os.MkdirAll(filepath.Dir(srcFile), 0755)
	writeBytes(t, srcFile, []byte("hello"))

	dest, err := CopyUnsupported(srcFile, srcRoot, outRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("unexpected error reading copy: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want %q", data, "hello")
	}
}

func TestAlignDirectoryMetadataMatchesSourceModTime(t *testing.T) {
	srcRoot := t.TempDir()
	outRoot := t.TempDir()
	srcSub := filepath.Join(srcRoot, "sub")
	outSub := filepath.Join(outRoot, "sub")
	os.MkdirAll(srcSub, 0755)
	os.MkdirAll(outSub, 0755)

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(srcSub, past, past); err != nil {
		t.Fatal(err)
	}

	if err := AlignDirectoryMetadata(srcRoot, outRoot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(outSub)
	if err != nil {
		t.Fatal(err)
	}
	if info.ModTime().Unix() != past.Unix() {
		t.Errorf("expected aligned mtime %v, got %v", past, info.ModTime())
	}
}
