package analysis

import (
	"image"
	"image/color"
	"testing"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func concatScenes(scenes []entity.Scene) []string {
	var out []string
	for _, s := range scenes {
		out = append(out, s.Frames...)
	}
	return out
}

func TestSegmentSplitsOnContentChange(t *testing.T) {
	black, white := solid(color.Black), solid(color.White)
	frames := framesFrom(t, black, black, white, white, black)

	scenes := NewSceneSegmenter(0, zap.NewNop()).Segment(frames)
	require.Len(t, scenes, 3)

	assert.Equal(t, entity.Scene{Index: 0, StartFrame: 0, Frames: []string{frames[1].Name}}, scenes[0])
	assert.Equal(t, entity.Scene{Index: 1, StartFrame: 2, Frames: []string{frames[2].Name, frames[3].Name}}, scenes[1])
	assert.Equal(t, entity.Scene{Index: 2, StartFrame: 4, Frames: []string{frames[4].Name}}, scenes[2])

	assert.Equal(t, entity.FrameNames(frames[1:]), concatScenes(scenes))
}

func TestSegmentSmallChangeStaysInScene(t *testing.T) {
	frames := framesFrom(t, solid(color.Gray{Y: 100}), solid(color.Gray{Y: 120}), solid(color.Gray{Y: 131}))

	scenes := NewSceneSegmenter(DefaultSceneThreshold, zap.NewNop()).Segment(frames)
	require.Len(t, scenes, 1)
	assert.Equal(t, entity.FrameNames(frames[1:]), scenes[0].Frames)
}

func TestSegmentDecodeFailureIsNoChange(t *testing.T) {
	frames := framesFrom(t, solid(color.Black), nil, solid(color.White))

	scenes := NewSceneSegmenter(0, zap.NewNop()).Segment(frames)
	require.Len(t, scenes, 1)
	assert.Equal(t, entity.FrameNames(frames[1:]), scenes[0].Frames)
}

func TestSegmentCapsAnalyzedPrefix(t *testing.T) {
	imgs := make([]image.Image, 60)
	for i := range imgs {
		imgs[i] = solid(color.Black)
		if i%10 == 9 {
			imgs[i] = solid(color.White)
		}
	}
	frames := framesFrom(t, imgs...)

	scenes := NewSceneSegmenter(0, zap.NewNop()).Segment(frames)
	all := concatScenes(scenes)
	assert.Equal(t, entity.FrameNames(frames[1:ScenePrefix]), all)

	for i, s := range scenes {
		assert.Equal(t, i, s.Index)
		if i > 0 {
			assert.Greater(t, s.StartFrame, scenes[i-1].StartFrame)
		}
	}
}

func TestSegmentEdgeCases(t *testing.T) {
	seg := NewSceneSegmenter(0, zap.NewNop())

	empty := seg.Segment(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	single := seg.Segment(framesFrom(t, solid(color.Black)))
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].StartFrame)
	assert.Empty(t, single[0].Frames)
}
