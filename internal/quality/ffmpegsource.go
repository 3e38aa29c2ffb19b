package quality

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// FFmpegFrameSource decodes reference and distorted files to raw 8-bit
// planar YUV420p and yields them frame by frame, so SSIM/MS-SSIM/PSNR can
// be computed against the actual decoded pixels rather than trusting
// container-level size comparisons.
type FFmpegFrameSource struct {
	width, height   int
	chromaW, chromaH int
	totalFrames     int

	refCmd, distCmd *exec.Cmd
	refOut, distOut *bufio.Reader
	refErr, distErr strings.Builder
}

// NewFFmpegFrameSource starts decoding both files. width/height/totalFrames
// describe the reference stream (the distorted stream is expected to
// match, per the dimension checks already performed by SSIM/PSNR/MS-SSIM).
func NewFFmpegFrameSource(ctx context.Context, refPath, distPath string, width, height, totalFrames int) (*FFmpegFrameSource, error) {
	s := &FFmpegFrameSource{
		width:       width,
		height:      height,
		chromaW:     (width + 1) / 2,
		chromaH:     (height + 1) / 2,
		totalFrames: totalFrames,
	}

	refCmd, refOut, err := startRawDecode(ctx, refPath, &s.refErr)
	if err != nil {
		return nil, fmt.Errorf("quality: starting reference decode: %w", err)
	}
	distCmd, distOut, err := startRawDecode(ctx, distPath, &s.distErr)
	if err != nil {
		_ = refCmd.Process.Kill()
		return nil, fmt.Errorf("quality: starting distorted decode: %w", err)
	}

	s.refCmd, s.refOut = refCmd, refOut
	s.distCmd, s.distOut = distCmd, distOut
	return s, nil
}

func startRawDecode(ctx context.Context, path string, errBuf *strings.Builder) (*exec.Cmd, *bufio.Reader, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	// Drain stderr on its own goroutine: ffmpeg's progress/diagnostic
	// output must not block because the pipe's buffer filled while we're
	// busy reading stdout frames, the classic dual-pipe deadlock.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, rerr := stderr.Read(buf)
			if n > 0 {
				errBuf.Write(buf[:n])
			}
			if rerr != nil {
				return
			}
		}
	}()
	return cmd, bufio.NewReaderSize(stdout, 1<<20), nil
}

func (s *FFmpegFrameSource) TotalFrames() int { return s.totalFrames }

func (s *FFmpegFrameSource) Next(ctx context.Context) (Frame, bool, error) {
	ySize := s.width * s.height
	cSize := s.chromaW * s.chromaH

	refY, refOk, err := readPlane(s.refOut, s.width, s.height, ySize)
	if err != nil {
		return Frame{}, false, s.decodeError("reference", err)
	}
	distY, distOk, err := readPlane(s.distOut, s.width, s.height, ySize)
	if err != nil {
		return Frame{}, false, s.decodeError("distorted", err)
	}
	if !refOk || !distOk {
		return Frame{}, false, nil
	}

	refU, _, err := readPlane(s.refOut, s.chromaW, s.chromaH, cSize)
	if err != nil {
		return Frame{}, false, s.decodeError("reference", err)
	}
	refV, _, err := readPlane(s.refOut, s.chromaW, s.chromaH, cSize)
	if err != nil {
		return Frame{}, false, s.decodeError("reference", err)
	}
	distU, _, err := readPlane(s.distOut, s.chromaW, s.chromaH, cSize)
	if err != nil {
		return Frame{}, false, s.decodeError("distorted", err)
	}
	distV, _, err := readPlane(s.distOut, s.chromaW, s.chromaH, cSize)
	if err != nil {
		return Frame{}, false, s.decodeError("distorted", err)
	}

	return Frame{
		RefY: refY, DistY: distY,
		RefU: refU, DistU: distU,
		RefV: refV, DistV: distV,
	}, true, nil
}

func (s *FFmpegFrameSource) decodeError(which string, err error) error {
	return fmt.Errorf("quality: %s decode: %w", which, err)
}

func readPlane(r *bufio.Reader, w, h, size int) (Plane, bool, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Plane{}, false, nil
	}
	if err != nil {
		return Plane{}, false, err
	}
	return Plane{Width: w, Height: h, Pix: buf[:n]}, true, nil
}

// Close waits for both decode processes to exit and returns an error for
// the first one (reference, then distorted) that exited with a failure,
// including the tail of its stderr.
func (s *FFmpegFrameSource) Close() error {
	refErr := s.refCmd.Wait()
	distErr := s.distCmd.Wait()
	if refErr != nil {
		return fmt.Errorf("quality: reference ffmpeg: %w: %s", refErr, lastLines(s.refErr.String()))
	}
	if distErr != nil {
		return fmt.Errorf("quality: distorted ffmpeg: %w: %s", distErr, lastLines(s.distErr.String()))
	}
	return nil
}

func lastLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= 5 {
		return strings.Join(lines, " | ")
	}
	return strings.Join(lines[len(lines)-5:], " | ")
}
