package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
)

const (
	// FramePattern numbers stills so that lexicographic order is extraction order.
	FramePattern = "frame_%05d.png"
	FrameExt     = ".png"

	sceneCutThreshold = 0.3
)

type Planner struct {
	ffmpegPath string
}

func NewPlanner(ffmpegPath string) *Planner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Planner{ffmpegPath: ffmpegPath}
}

func (p *Planner) Plan(req entity.ExtractionRequest, videoPath, outputDir string) (port.Command, error) {
	if err := req.Validate(); err != nil {
		return port.Command{}, err
	}
	if videoPath == "" || outputDir == "" {
		return port.Command{}, fmt.Errorf("%w: video path and output dir are required", entity.ErrInvalidParameter)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	// Keyframe selection happens in the decoder, so it is an input option.
	if req.Mode == entity.ModeKeyframe {
		args = append(args, "-skip_frame", "nokey")
	}

	args = append(args, "-i", videoPath)

	if req.Start != nil && *req.Start > 0 {
		args = append(args, "-ss", formatSeconds(*req.Start))
	}
	if req.End != nil {
		args = append(args, "-to", formatSeconds(*req.End))
	}

	switch req.Mode {
	case entity.ModeFixedRate:
		args = append(args, "-vf", "fps="+strconv.FormatFloat(req.Rate, 'f', -1, 64))
	case entity.ModeSceneCut:
		args = append(args, "-vf", fmt.Sprintf("select='gt(scene,%s)'", strconv.FormatFloat(sceneCutThreshold, 'f', -1, 64)), "-vsync", "vfr")
	case entity.ModeKeyframe:
		args = append(args, "-vsync", "vfr")
	}

	pattern := filepath.Join(outputDir, FramePattern)
	args = append(args, "-y", pattern)

	return port.Command{
		Program:       p.ffmpegPath,
		Args:          args,
		OutputPattern: pattern,
	}, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
