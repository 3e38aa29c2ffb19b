// Package imgstrategy classifies a still or animated image by magic bytes
// and decides which modern format it should become: JPEG XL for lossless
// stills, AVIF for lossy stills, or a visually-lossless AV1 MP4 for
// animated-lossless sources. Lossy animated sources are left alone, since
// re-encoding them can only lose more quality.
package imgstrategy

import (
	"fmt"
	"os"

	"github.com/five82/mfboost/internal/copier"
)

// ImageType classifies a source as single-frame or multi-frame.
type ImageType int

const (
	Static ImageType = iota
	Animated
)

// CompressionType classifies a source's existing compression.
type CompressionType int

const (
	Lossless CompressionType = iota
	Lossy
)

// TargetFormat is the modern format a strategy converts to.
type TargetFormat int

const (
	JXL TargetFormat = iota
	AVIF
	AV1MP4
	NoConversion
)

// Extension returns the file extension (without the dot) a target format
// is written with. NoConversion has no extension of its own: the source
// file is copied verbatim.
func (t TargetFormat) Extension() string {
	switch t {
	case JXL:
		return "jxl"
	case AVIF:
		return "avif"
	case AV1MP4:
		return "mp4"
	default:
		return ""
	}
}

func (t TargetFormat) String() string {
	switch t {
	case JXL:
		return "jxl"
	case AVIF:
		return "avif"
	case AV1MP4:
		return "av1mp4"
	case NoConversion:
		return "no-conversion"
	default:
		return "unknown"
	}
}

// Detection is one file's classification: format, animation, and existing
// compression, plus the format-specific hints a strategy needs.
type Detection struct {
	Format           copier.ContentFormat
	Type             ImageType
	Compression      CompressionType
	FrameCount       int
	EstimatedQuality int     // JPEG only; 0 means unestimated
	FPS              float64 // animated sources only; 0 means unknown
}

// defaultAnimatedFPS is assumed for GIF and animated PNG sources, which
// carry per-frame delays rather than a single fixed rate; the original
// conversion tooling uses the same flat default rather than averaging
// frame delays.
const defaultAnimatedFPS = 10.0

// Detect sniffs path's magic bytes and, for recognized still/animated
// image formats, classifies its compression and animation. Returns an
// error for formats DetectFormat cannot identify, so the caller can fall
// back to copying the file verbatim.
func Detect(path string) (Detection, error) {
	format := copier.DetectFormat(path)
	if format == copier.FormatUnknown {
		return Detection{}, fmt.Errorf("imgstrategy: %s: unrecognized image format", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Detection{}, fmt.Errorf("imgstrategy: reading %s: %w", path, err)
	}

	switch format {
	case copier.FormatJPEG:
		return Detection{
			Format:           format,
			Type:             Static,
			Compression:      Lossy,
			FrameCount:       1,
			EstimatedQuality: estimateJPEGQuality(data),
		}, nil

	case copier.FormatPNG:
		animated := hasChunk(data, "acTL")
		d := Detection{
			Format:      format,
			Compression: detectPNGCompression(data),
			FrameCount:  1,
		}
		if animated {
			d.Type = Animated
			d.FrameCount = 2
			d.FPS = defaultAnimatedFPS
		} else {
			d.Type = Static
		}
		return d, nil

	case copier.FormatGIF:
		frames := countGIFFrames(data)
		d := Detection{
			Format:      format,
			Compression: Lossless, // palette-based compression, never lossy
			FrameCount:  frames,
		}
		if frames > 1 {
			d.Type = Animated
			d.FPS = defaultAnimatedFPS
		} else {
			d.Type = Static
		}
		return d, nil

	case copier.FormatWebP:
		lossless := hasChunk(data, "VP8L")
		animated := hasChunk(data, "ANIM")
		d := Detection{Format: format, FrameCount: 1}
		if lossless {
			d.Compression = Lossless
		} else {
			d.Compression = Lossy
		}
		if animated {
			d.Type = Animated
			d.FrameCount = countChunks(data, "ANMF")
			d.FPS = 24.0 // libwebp's ANIM default when no frame-delay average is taken
		} else {
			d.Type = Static
		}
		return d, nil

	case copier.FormatTIFF:
		return Detection{Format: format, Type: Static, Compression: Lossless, FrameCount: 1}, nil

	default:
		return Detection{}, fmt.Errorf("imgstrategy: %s: no strategy for detected format %s", path, format)
	}
}

// Strategy is the decision produced for one Detection: which format to
// convert to, why, and the expected size reduction for reporting.
type Strategy struct {
	Target            TargetFormat
	Reason            string
	ExpectedReduction float64
}

// DetermineStrategy picks a conversion target from a Detection, mirroring
// the five-branch decision table: JPEG always transcodes losslessly to
// JXL regardless of its own compression classification (it is always
// lossy, but the DCT coefficients can be repacked without further loss);
// other static-lossless sources also go to JXL; animated-lossless sources
// go to a visually-lossless AV1 MP4; animated-lossy sources are left
// alone; and any remaining static-lossy source (a non-JPEG) goes to AVIF.
func DetermineStrategy(d Detection) Strategy {
	switch {
	case d.Type == Static && d.Format == copier.FormatJPEG:
		return Strategy{
			Target:            JXL,
			Reason:            "JPEG lossless transcode to JXL, preserving DCT coefficients",
			ExpectedReduction: 15.0,
		}
	case d.Type == Static && d.Compression == Lossless:
		return Strategy{
			Target:            JXL,
			Reason:            "static lossless image, recommend JXL for better compression",
			ExpectedReduction: 45.0,
		}
	case d.Type == Animated && d.Compression == Lossless:
		return Strategy{
			Target:            AV1MP4,
			Reason:            "animated lossless image, recommend AV1 MP4 with CRF 0 (visually lossless)",
			ExpectedReduction: 30.0,
		}
	case d.Type == Animated && d.Compression == Lossy:
		return Strategy{
			Target: NoConversion,
			Reason: "animated lossy image, skipping to avoid further quality loss",
		}
	default: // Static && Lossy, non-JPEG
		return Strategy{
			Target:            AVIF,
			Reason:            "static lossy image (non-JPEG), recommend AVIF for better compression",
			ExpectedReduction: 25.0,
		}
	}
}

// AVIFQuality returns d's estimated quality for the -q flag, defaulting
// to 85 when no estimate was made (non-JPEG sources carry none).
func (d Detection) AVIFQuality() int {
	if d.EstimatedQuality <= 0 {
		return 85
	}
	return d.EstimatedQuality
}

// AnimatedFPS returns d's detected frame rate, defaulting to 10 fps when
// unset (static sources never reach the AV1MP4 branch).
func (d Detection) AnimatedFPS() float64 {
	if d.FPS <= 0 {
		return defaultAnimatedFPS
	}
	return d.FPS
}

func hasChunk(data []byte, chunk string) bool {
	return indexOf(data, []byte(chunk)) >= 0
}

func countChunks(data []byte, chunk string) int {
	needle := []byte(chunk)
	count := 0
	for i := 0; i+len(needle) <= len(data); i++ {
		if string(data[i:i+len(needle)]) == chunk {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func indexOf(data, needle []byte) int {
	for i := 0; i+len(needle) <= len(data); i++ {
		match := true
		for j := range needle {
			if data[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// estimateJPEGQuality reads the first DQT (quantization table) marker's
// leading coefficient and maps it to an approximate libjpeg quality
// level. This is the same coarse heuristic real-world JPEG re-encoders
// use when no quality was recorded in metadata. The header is examined
// through a fixed 4096-byte zero-padded window so a marker near the end
// of a short file still has a coefficient byte to read, the same way a
// fixed-size read buffer behaves regardless of how much of it a short
// file actually fills.
func estimateJPEGQuality(data []byte) int {
	buf := make([]byte, 4096)
	copy(buf, data)

	for i := 0; i+5 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1] == 0xDB {
			q := int(buf[i+5])
			switch {
			case q <= 2:
				return 98
			case q <= 5:
				return 95
			case q <= 10:
				return 90
			case q <= 20:
				return 85
			case q <= 40:
				return 75
			case q <= 60:
				return 65
			default:
				return 50
			}
		}
	}
	return 85
}

// detectPNGCompression flags an indexed-color PNG with a suspiciously
// large palette or a transparency chunk as quantized (lossy), and
// everything else as lossless. This catches the common pngquant/TinyPNG
// case without needing a full PNG decode.
func detectPNGCompression(data []byte) CompressionType {
	const ihdrStart = 8
	if len(data) < ihdrStart+8+13 {
		return Lossless
	}
	if string(data[ihdrStart+4:ihdrStart+8]) != "IHDR" {
		return Lossless
	}
	colorType := data[ihdrStart+8+9]
	if colorType != 3 {
		return Lossless
	}

	if hasChunk(data, "tRNS") {
		return Lossy
	}

	pltePos := indexOf(data, []byte("PLTE"))
	if pltePos < 4 {
		return Lossless
	}
	lenPos := pltePos - 4
	if lenPos+4 > len(data) {
		return Lossless
	}
	plteLen := int(data[lenPos])<<24 | int(data[lenPos+1])<<16 | int(data[lenPos+2])<<8 | int(data[lenPos+3])
	paletteColors := plteLen / 3
	if paletteColors > 200 {
		return Lossy
	}
	return Lossless
}

// countGIFFrames walks the GIF block structure (logical screen descriptor,
// optional global color table, then a sequence of image descriptors and
// extension blocks) rather than naively counting 0x2C bytes, since raw
// LZW-compressed image data can itself contain that byte value.
func countGIFFrames(data []byte) int {
	if len(data) < 13 || string(data[0:3]) != "GIF" {
		return 0
	}

	pos := 6
	if pos+7 > len(data) {
		return 0
	}
	packed := data[pos+4]
	hasGCT := packed&0x80 != 0
	gctSize := 0
	if hasGCT {
		gctSize = 3 * (1 << ((packed & 0x07) + 1))
	}
	pos += 7 + gctSize

	frames := 0
	for pos < len(data) {
		switch data[pos] {
		case 0x2C: // image descriptor
			frames++
			if pos+10 > len(data) {
				return frames
			}
			imgPacked := data[pos+9]
			hasLCT := imgPacked&0x80 != 0
			lctSize := 0
			if hasLCT {
				lctSize = 3 * (1 << ((imgPacked & 0x07) + 1))
			}
			pos += 10 + lctSize
			if pos >= len(data) {
				return frames
			}
			pos++ // LZW minimum code size
			pos = skipSubBlocks(data, pos)
		case 0x21: // extension introducer
			if pos+2 >= len(data) {
				return frames
			}
			pos += 2
			pos = skipSubBlocks(data, pos)
		case 0x3B: // trailer
			return frames
		default:
			pos++
		}
	}
	return frames
}

// skipSubBlocks advances past a sequence of length-prefixed sub-blocks
// terminated by a zero-length block, the shared structure GIF uses for
// both LZW image data and extension payloads.
func skipSubBlocks(data []byte, pos int) int {
	for pos < len(data) {
		blockSize := int(data[pos])
		pos++
		if blockSize == 0 {
			break
		}
		pos += blockSize
	}
	return pos
}
