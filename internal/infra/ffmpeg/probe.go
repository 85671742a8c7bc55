package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/framescope/framescope/internal/domain/entity"
	"go.uber.org/zap"
)

type Prober struct {
	ffprobePath string
	timeout     time.Duration
	logger      *zap.Logger
}

func NewProber(ffprobePath string, timeout time.Duration, logger *zap.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, timeout: timeout, logger: logger}
}

func (p *Prober) Probe(ctx context.Context, videoPath string) (entity.VideoMetadata, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		"--", videoPath,
	)
	cmd.WaitDelay = waitDelay
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		return entity.VideoMetadata{}, fmt.Errorf("%w: ffprobe: %v: %s", entity.ErrProbeFailure, err, strings.TrimSpace(stderr.String()))
	}

	meta, err := parseProbeOutput(output)
	if err != nil {
		return entity.VideoMetadata{}, err
	}

	p.logger.Debug("video probed",
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("fps", meta.FPS),
		zap.Float64("duration", meta.Duration),
		zap.Int("frame_count", meta.FrameCount),
	)
	return meta, nil
}

// probeResult matches the subset of ffprobe JSON requested above.
type probeResult struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NBFrames   string `json:"nb_frames"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(output []byte) (entity.VideoMetadata, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("%w: %v", entity.ErrProbeParseFailure, err)
	}
	if len(probe.Streams) == 0 {
		return entity.VideoMetadata{}, fmt.Errorf("%w: no video stream", entity.ErrProbeParseFailure)
	}

	stream := probe.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return entity.VideoMetadata{}, fmt.Errorf("%w: missing dimensions", entity.ErrProbeParseFailure)
	}

	fps, err := parseFrameRate(stream.RFrameRate)
	if err != nil {
		return entity.VideoMetadata{}, err
	}

	meta := entity.VideoMetadata{
		Width:  stream.Width,
		Height: stream.Height,
		FPS:    fps,
	}

	// Duration and frame count are best-effort.
	for _, d := range []string{stream.Duration, probe.Format.Duration} {
		if v, err := strconv.ParseFloat(d, 64); err == nil && v >= 0 {
			meta.Duration = v
			break
		}
	}
	if n, err := strconv.Atoi(stream.NBFrames); err == nil && n > 0 {
		meta.FrameCount = n
	}

	return meta, nil
}

// parseFrameRate rounds a rational such as "30000/1001" to the nearest integer.
func parseFrameRate(rate string) (int, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0, fmt.Errorf("%w: missing frame rate", entity.ErrProbeParseFailure)
	}

	num, den, found := strings.Cut(rate, "/")
	if !found {
		den = "1"
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frame rate numerator %q", entity.ErrProbeParseFailure, num)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frame rate denominator %q", entity.ErrProbeParseFailure, den)
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: zero frame rate denominator", entity.ErrProbeParseFailure)
	}

	return int(math.Round(n / d)), nil
}
