package imgstrategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/mfboost/internal/copier"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectUnrecognizedFormatErrors(t *testing.T) {
	path := writeTemp(t, "a.bin", []byte("not an image"))
	if _, err := Detect(path); err == nil {
		t.Fatal("expected an error for unrecognized magic bytes")
	}
}

func TestEstimateJPEGQualityLowQuantValueMeansHighQuality(t *testing.T) {
	data := []byte{0xFF, 0xDB, 0x00, 0x43, 0x00, 0x01}
	if q := estimateJPEGQuality(data); q < 90 {
		t.Errorf("low quant coefficient should map to high quality, got %d", q)
	}
}

func TestEstimateJPEGQualityHighQuantValueMeansLowQuality(t *testing.T) {
	data := []byte{0xFF, 0xDB, 0x00, 0x43, 0x00, 0xFF}
	if q := estimateJPEGQuality(data); q != 50 {
		t.Errorf("expected quality 50 for a coarse quant table, got %d", q)
	}
}

func TestEstimateJPEGQualityDefaultsWhenNoDQTFound(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if q := estimateJPEGQuality(data); q != 85 {
		t.Errorf("expected default quality 85, got %d", q)
	}
}

func webpHeader(chunks ...string) []byte {
	data := []byte("RIFF")
	data = append(data, 0, 0, 0, 0)
	data = append(data, "WEBP"...)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return data
}

func TestWebPLosslessDetection(t *testing.T) {
	data := webpHeader("VP8L", string(make([]byte, 20)))
	if detectWebPCompressionForTest(data) != Lossless {
		t.Error("expected VP8L chunk to be detected as lossless")
	}
}

func TestWebPLossyDetection(t *testing.T) {
	data := webpHeader("VP8 ", string(make([]byte, 20)))
	if detectWebPCompressionForTest(data) != Lossy {
		t.Error("expected a chunk without VP8L to be detected as lossy")
	}
}

// detectWebPCompressionForTest mirrors the switch branch in Detect for
// WebP without requiring a full on-disk round trip.
func detectWebPCompressionForTest(data []byte) CompressionType {
	if hasChunk(data, "VP8L") {
		return Lossless
	}
	return Lossy
}

func TestCountGIFFramesStatic(t *testing.T) {
	// Minimal single-frame GIF: header, logical screen descriptor (no
	// GCT), one image descriptor, an empty (zero-length) image data
	// sub-block, trailer.
	data := []byte{}
	data = append(data, "GIF89a"...)
	data = append(data, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00) // screen descriptor, no GCT
	data = append(data, 0x2C, 0, 0, 0, 0, 0x01, 0x00, 0x01, 0x00, 0x00)
	data = append(data, 0x02) // LZW min code size
	data = append(data, 0x00) // zero-length sub-block terminates image data
	data = append(data, 0x3B) // trailer
	if got := countGIFFrames(data); got != 1 {
		t.Errorf("expected 1 frame, got %d", got)
	}
}

func TestCountGIFFramesAnimated(t *testing.T) {
	data := []byte{}
	data = append(data, "GIF89a"...)
	data = append(data, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00)
	frame := []byte{0x2C, 0, 0, 0, 0, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00}
	data = append(data, frame...)
	data = append(data, frame...)
	data = append(data, 0x3B)
	if got := countGIFFrames(data); got != 2 {
		t.Errorf("expected 2 frames, got %d", got)
	}
}

func TestDetermineStrategyJPEGAlwaysGoesToJXLLosslessTranscode(t *testing.T) {
	d := Detection{Format: copier.FormatJPEG, Type: Static, Compression: Lossy, EstimatedQuality: 80}
	s := DetermineStrategy(d)
	if s.Target != JXL {
		t.Errorf("expected JPEG to target JXL, got %v", s.Target)
	}
}

func TestDetermineStrategyStaticLosslessGoesToJXL(t *testing.T) {
	d := Detection{Format: copier.FormatPNG, Type: Static, Compression: Lossless}
	s := DetermineStrategy(d)
	if s.Target != JXL {
		t.Errorf("expected static lossless to target JXL, got %v", s.Target)
	}
}

func TestDetermineStrategyAnimatedLosslessGoesToAV1MP4(t *testing.T) {
	d := Detection{Format: copier.FormatGIF, Type: Animated, Compression: Lossless}
	s := DetermineStrategy(d)
	if s.Target != AV1MP4 {
		t.Errorf("expected animated lossless to target AV1MP4, got %v", s.Target)
	}
}

func TestDetermineStrategyAnimatedLossyIsSkipped(t *testing.T) {
	d := Detection{Format: copier.FormatWebP, Type: Animated, Compression: Lossy}
	s := DetermineStrategy(d)
	if s.Target != NoConversion {
		t.Errorf("expected animated lossy to skip conversion, got %v", s.Target)
	}
}

func TestDetermineStrategyStaticLossyNonJPEGGoesToAVIF(t *testing.T) {
	d := Detection{Format: copier.FormatWebP, Type: Static, Compression: Lossy}
	s := DetermineStrategy(d)
	if s.Target != AVIF {
		t.Errorf("expected static lossy non-JPEG to target AVIF, got %v", s.Target)
	}
}

func TestAVIFQualityDefaultsTo85(t *testing.T) {
	d := Detection{}
	if got := d.AVIFQuality(); got != 85 {
		t.Errorf("expected default AVIF quality 85, got %d", got)
	}
}

func TestDetectPNGStaticLossless(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	data = append(data, 0, 0, 0, 13) // IHDR length
	data = append(data, "IHDR"...)
	data = append(data, 0, 0, 1, 0, 0, 0, 1, 0) // width/height
	data = append(data, 8, 2, 0, 0, 0)          // bit depth 8, color type 2 (truecolor)
	path := writeTemp(t, "a.png", data)

	d, err := Detect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Format != copier.FormatPNG || d.Type != Static || d.Compression != Lossless {
		t.Errorf("unexpected detection: %+v", d)
	}
}

func TestDetectJPEGStaticLossy(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00, 0x02}
	path := writeTemp(t, "a.jpg", data)

	d, err := Detect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Format != copier.FormatJPEG || d.Type != Static || d.Compression != Lossy {
		t.Errorf("unexpected detection: %+v", d)
	}
	if d.EstimatedQuality < 90 {
		t.Errorf("expected high estimated quality, got %d", d.EstimatedQuality)
	}
}

func TestAnimatedFPSDefaultsTo10(t *testing.T) {
	d := Detection{}
	if got := d.AnimatedFPS(); got != 10.0 {
		t.Errorf("expected default fps 10, got %v", got)
	}
}
