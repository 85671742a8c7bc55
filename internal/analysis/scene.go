package analysis

import (
	"image"

	"github.com/framescope/framescope/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	// ScenePrefix bounds how many frames are grouped into scenes.
	ScenePrefix = 50
	// DefaultSceneThreshold is the mean absolute sample difference (0-255)
	// above which adjacent frames belong to different scenes.
	DefaultSceneThreshold = 30.0

	thumbWidth  = 320
	thumbHeight = 240
)

type SceneSegmenter struct {
	threshold float64
	limit     int
	logger    *zap.Logger
}

func NewSceneSegmenter(threshold float64, logger *zap.Logger) *SceneSegmenter {
	if threshold <= 0 {
		threshold = DefaultSceneThreshold
	}
	return &SceneSegmenter{threshold: threshold, limit: ScenePrefix, logger: logger}
}

// Segment groups the frames into contiguous scenes. Scene 0 always starts at
// frame 0, which is implied by StartFrame and not repeated in Frames; every
// later frame appears in exactly one scene's Frames in sequence order.
func (s *SceneSegmenter) Segment(frames []entity.FrameFile) []entity.Scene {
	if len(frames) > s.limit {
		frames = frames[:s.limit]
	}
	scenes := []entity.Scene{}
	if len(frames) == 0 {
		return scenes
	}

	scenes = append(scenes, entity.Scene{Index: 0, StartFrame: 0, Frames: []string{}})
	prev := s.thumbnail(frames[0])

	for i := 1; i < len(frames); i++ {
		cur := s.thumbnail(frames[i])

		changed := false
		if prev != nil && cur != nil {
			changed = meanAbsDiff(prev, cur) > s.threshold
		}

		if changed {
			scenes = append(scenes, entity.Scene{
				Index:      len(scenes),
				StartFrame: i,
				Frames:     []string{frames[i].Name},
			})
		} else {
			last := &scenes[len(scenes)-1]
			last.Frames = append(last.Frames, frames[i].Name)
		}
		prev = cur
	}

	s.logger.Debug("scenes segmented",
		zap.Int("frames", len(frames)),
		zap.Int("scenes", len(scenes)),
	)
	return scenes
}

// thumbnail returns nil when the frame cannot be decoded; a pair with a nil
// side is treated as no scene change.
func (s *SceneSegmenter) thumbnail(frame entity.FrameFile) *image.RGBA {
	img, err := decodeImage(frame.Path)
	if err != nil {
		s.logger.Warn("scene comparison skipped frame",
			zap.String("frame", frame.Name),
			zap.Error(err),
		)
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// meanAbsDiff compares the R, G and B samples of two equally sized thumbnails.
func meanAbsDiff(a, b *image.RGBA) float64 {
	var total, n float64
	for i := 0; i+4 <= len(a.Pix) && i+4 <= len(b.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := int(a.Pix[i+c]) - int(b.Pix[i+c])
			if d < 0 {
				d = -d
			}
			total += float64(d)
		}
		n += 3
	}
	if n == 0 {
		return 0
	}
	return total / n
}
