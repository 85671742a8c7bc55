package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
	"go.uber.org/zap"
)

// waitDelay bounds how long output pipes may stay open after the deadline
// kills the process, for grandchildren that inherited them.
const waitDelay = 2 * time.Second

type Extractor struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewExtractor(timeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{timeout: timeout, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, command port.Command, outputDir string) ([]entity.FrameFile, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, command.Program, command.Args...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		return nil, &entity.ExtractionError{Output: strings.TrimSpace(string(output)), Err: err}
	}

	frames, err := listFrames(outputDir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, entity.ErrEmptyExtraction
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].Index != frames[i-1].Index+1 {
			e.logger.Warn("gap in frame numbering",
				zap.Int("after", frames[i-1].Index),
				zap.Int("next", frames[i].Index),
			)
		}
	}

	e.logger.Info("frames extracted",
		zap.Int("count", len(frames)),
		zap.String("pattern", command.OutputPattern),
		zap.Duration("elapsed", time.Since(start)),
	)
	return frames, nil
}

// listFrames returns the numbered stills in outputDir ordered by sequence index.
func listFrames(outputDir string) ([]entity.FrameFile, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}

	var frames []entity.FrameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok := frameIndex(entry.Name())
		if !ok {
			continue
		}
		frames = append(frames, entity.FrameFile{
			Index: idx,
			Name:  entry.Name(),
			Path:  filepath.Join(outputDir, entry.Name()),
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Index < frames[j].Index
	})
	return frames, nil
}

func frameIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "frame_") || !strings.HasSuffix(name, FrameExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "frame_"), FrameExt)
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
