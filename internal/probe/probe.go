package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/logging"
)

// DefaultTimeout bounds one ffprobe invocation.
const DefaultTimeout = 30 * time.Second

// Result holds the technical metadata of a media file. Nil fields mean the
// value could not be determined.
type Result struct {
	Duration  *float64
	Width     *int
	Height    *int
	Codec     *string
	FrameRate *float64
}

// ffprobeOutput mirrors the parts of ffprobe's JSON output we consume.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Prober runs ffprobe against media files.
type Prober struct {
	timeout time.Duration
}

// New creates a Prober. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{timeout: timeout}
}

// Probe inspects the file at path. It never returns an error; any failure
// yields a Result with all fields nil.
func (p *Prober) Probe(ctx context.Context, path string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Warn("ffprobe failed for %s: %v (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
		return Result{}
	}

	return Parse(stdout.Bytes(), path)
}

// Parse decodes ffprobe JSON output into a Result. Exposed separately so
// the parsing rules are testable without spawning a subprocess.
func Parse(raw []byte, path string) Result {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.Warn("malformed ffprobe output for %s: %v", path, err)
		return Result{}
	}

	var r Result

	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			r.Duration = &d
		}
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width > 0 {
			w := s.Width
			r.Width = &w
		}
		if s.Height > 0 {
			h := s.Height
			r.Height = &h
		}
		if s.CodecName != "" {
			c := s.CodecName
			r.Codec = &c
		}
		r.FrameRate = parseFrameRate(s.RFrameRate)
		break
	}

	return r
}

// parseFrameRate converts ffprobe's rational frame rate ("30000/1001") to
// frames per second. A zero or absent denominator falls back to the
// numerator as an integer rate; anything unparsable yields nil.
func parseFrameRate(raw string) *float64 {
	if raw == "" {
		return nil
	}

	num, den, found := strings.Cut(raw, "/")

	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return nil
	}

	if found {
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err == nil && d != 0 {
			fps := math.Round(n/d*1000) / 1000
			return &fps
		}
	}

	// Zero or missing denominator: numerator alone is the rate.
	fps := math.Trunc(n)
	return &fps
}
