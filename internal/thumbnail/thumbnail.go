package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"media-pipeline/internal/logging"
)

const (
	// DefaultTimestamp is where the representative frame is grabbed.
	DefaultTimestamp = "00:00:02"

	// DefaultTimeout bounds one ffmpeg invocation.
	DefaultTimeout = 30 * time.Second

	// thumbWidth is the output width; height follows the source aspect
	// ratio.
	thumbWidth = 480

	jpegQuality = 85
)

// Extractor grabs video frames and writes thumbnails.
type Extractor struct {
	timeout time.Duration
}

// New creates an Extractor. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{timeout: timeout}
}

// Extract grabs one frame from sourcePath at atTimestamp and writes a
// scaled JPEG to destPath. The boolean reports whether a thumbnail was
// produced; extraction failure is not an error.
func (e *Extractor) Extract(ctx context.Context, sourcePath, destPath, atTimestamp string) (string, bool) {
	if atTimestamp == "" {
		atTimestamp = DefaultTimestamp
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	frame, err := grabFrame(ctx, sourcePath, atTimestamp)
	if err != nil {
		logging.Warn("thumbnail extraction failed for %s: %v", sourcePath, err)
		return "", false
	}

	if err := writeThumbnail(frame, destPath); err != nil {
		logging.Warn("thumbnail write failed for %s: %v", destPath, err)
		return "", false
	}

	logging.Debug("thumbnail written: %s", destPath)
	return destPath, true
}

// grabFrame pipes a single PNG frame out of ffmpeg. Very short clips can
// have nothing at the requested timestamp, so a failed seek retries from
// the start of the file.
func grabFrame(ctx context.Context, sourcePath, atTimestamp string) (image.Image, error) {
	out, err := runFFmpeg(ctx, "-ss", atTimestamp, "-i", sourcePath,
		"-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		logging.Debug("frame grab at %s failed for %s: %v, retrying from start", atTimestamp, sourcePath, err)
		out, err = runFFmpeg(ctx, "-i", sourcePath,
			"-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
		if err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return img, nil
}

func runFFmpeg(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

// FromImage decodes a poster image from r and writes it as a scaled JPEG
// thumbnail at destPath. Unlike Extract, decode failures are errors: the
// caller supplied the image and should hear about a bad one.
func FromImage(r io.Reader, destPath string) error {
	img, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("failed to decode poster image: %w", err)
	}
	logging.Debug("poster image decoded as %s", format)

	return writeThumbnail(img, destPath)
}

func writeThumbnail(img image.Image, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	// Width-constrained resize keeps the source aspect ratio.
	resized := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)

	if err := imaging.Save(resized, destPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return nil
}
