// Package copier implements the file copier and structure preserver
// (C10): mirroring directory layout for unsupported files, sniffing magic
// bytes to catch mis-extensioned files before they are copied, and
// aligning destination directory metadata with the source tree.
package copier

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/five82/mfboost/internal/util"
)

// ContentFormat is a magic-byte-detected file format.
type ContentFormat string

const (
	FormatUnknown ContentFormat = ""
	FormatJPEG    ContentFormat = "jpeg"
	FormatPNG     ContentFormat = "png"
	FormatGIF     ContentFormat = "gif"
	FormatWebP    ContentFormat = "webp"
	FormatTIFF    ContentFormat = "tiff"
)

// validExtensions lists the extensions considered a match for a detected
// format, so a file is only renamed when its extension truly disagrees.
var validExtensions = map[ContentFormat][]string{
	FormatJPEG: {"jpg", "jpeg", "jpe", "jfif"},
	FormatPNG:  {"png"},
	FormatGIF:  {"gif"},
	FormatWebP: {"webp"},
	FormatTIFF: {"tiff", "tif"},
}

// DetectFormat sniffs a file's magic bytes. Returns FormatUnknown
// if the header does not match any recognized signature. Shared with the
// image conversion strategy selector, so extension mismatches and format
// classification agree on the same detector.
func DetectFormat(path string) ContentFormat {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, _ := io.ReadFull(f, buf)
	buf = buf[:n]

	switch {
	case hasPrefix(buf, 0xFF, 0xD8, 0xFF):
		return FormatJPEG
	case hasPrefix(buf, 0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A):
		return FormatPNG
	case hasPrefix(buf, 0x47, 0x49, 0x46, 0x38):
		return FormatGIF
	case len(buf) >= 12 && hasPrefix(buf, 0x52, 0x49, 0x46, 0x46) && string(buf[8:12]) == "WEBP":
		return FormatWebP
	case hasPrefix(buf, 0x49, 0x49, 0x2A, 0x00), hasPrefix(buf, 0x4D, 0x4D, 0x00, 0x2A):
		return FormatTIFF
	default:
		return FormatUnknown
	}
}

func hasPrefix(buf []byte, want ...byte) bool {
	if len(buf) < len(want) {
		return false
	}
	for i, b := range want {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// FixExtensionIfMismatch renames path if its content format disagrees with
// its extension, logging a loud warning. Returns
// the (possibly renamed) path. If the destination name already exists, the
// rename is skipped and the original path is returned unchanged.
func FixExtensionIfMismatch(logger *slog.Logger, path string) (string, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return path, nil
	}

	currentExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if extensionMatches(format, currentExt) {
		return path, nil
	}

	newPath := strings.TrimSuffix(path, filepath.Ext(path)) + "." + string(format)
	if util.FileExists(newPath) {
		if logger != nil {
			logger.Warn("extension mismatch detected but target already exists, skipping rename",
				"path", path, "detected_format", format, "target", newPath)
		}
		return path, nil
	}

	if logger != nil {
		logger.Warn("renaming mis-extensioned file to match detected content",
			"path", path, "detected_format", format, "renamed_to", newPath)
	}
	if err := os.Rename(path, newPath); err != nil {
		return path, fmt.Errorf("copier: renaming %s to %s: %w", path, newPath, err)
	}
	return newPath, nil
}

func extensionMatches(format ContentFormat, ext string) bool {
	valid, ok := validExtensions[format]
	if !ok {
		return true // unrecognized format: nothing to correct
	}
	for _, v := range valid {
		if ext == v {
			return true
		}
	}
	return false
}

// Destination computes output_root + (source ∖ source_root), mirroring
// the source tree's relative layout under the output root.
func Destination(source, sourceRoot, outputRoot string) (string, error) {
	rel, err := filepath.Rel(sourceRoot, source)
	if err != nil {
		return "", fmt.Errorf("copier: computing relative path: %w", err)
	}
	return filepath.Join(outputRoot, rel), nil
}

// CopyUnsupported copies source to output_root+(source∖source_root)
// verbatim, for files the encoder pipeline does not touch (documents,
// unrecognized extensions). Intermediate directories are created as
// needed.
func CopyUnsupported(source, sourceRoot, outputRoot string) (string, error) {
	dest, err := Destination(source, sourceRoot, outputRoot)
	if err != nil {
		return "", err
	}
	if err := util.EnsureDirectory(filepath.Dir(dest)); err != nil {
		return "", fmt.Errorf("copier: creating destination directory: %w", err)
	}
	if err := copyFile(source, dest); err != nil {
		return "", fmt.Errorf("copier: copying %s to %s: %w", source, dest, err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil // copy already succeeded; metadata alignment is best-effort
	}
	_ = os.Chmod(dst, info.Mode())
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// AlignDirectoryMetadata walks the mirrored output tree and aligns each
// directory's modification time and permissions with its counterpart
// under sourceRoot, run once at batch end.
func AlignDirectoryMetadata(sourceRoot, outputRoot string) error {
	return filepath.Walk(outputRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(outputRoot, path)
		if relErr != nil {
			return nil
		}
		srcDir := filepath.Join(sourceRoot, rel)
		srcInfo, statErr := os.Stat(srcDir)
		if statErr != nil {
			return nil // no corresponding source directory; nothing to align
		}
		_ = os.Chmod(path, srcInfo.Mode())
		_ = os.Chtimes(path, srcInfo.ModTime(), srcInfo.ModTime())
		return nil
	})
}
