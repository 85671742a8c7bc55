package analysis

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestQualityFromStdDev(t *testing.T) {
	assert.Equal(t, 0, QualityFromStdDev(0))
	assert.Equal(t, 15, QualityFromStdDev(10))
	assert.Equal(t, 30, QualityFromStdDev(20))
	assert.Equal(t, 100, QualityFromStdDev(66.7))
	assert.Equal(t, 100, QualityFromStdDev(127.5))
}

func TestScoreFlatFrameIsBlurry(t *testing.T) {
	frames := framesFrom(t, solid(color.Gray{Y: 128}))

	got := NewQualityScorer(zap.NewNop()).Score(frames[0])
	assert.Equal(t, frames[0].Name, got.Filename)
	assert.Equal(t, 0, got.Quality)
	assert.True(t, got.IsBlurry)
	assert.False(t, got.IsKeyframe)
}

func TestScoreDetailedFrameIsSharp(t *testing.T) {
	frames := framesFrom(t, checkerboard())

	got := NewQualityScorer(zap.NewNop()).Score(frames[0])
	assert.Equal(t, 100, got.Quality)
	assert.False(t, got.IsBlurry)
}

func TestScoreUnreadableFrameFallsBack(t *testing.T) {
	scorer := NewQualityScorer(zap.NewNop())

	corrupt := framesFrom(t, nil)[0]
	assert.Equal(t, entity.FrameAnalysis{Filename: corrupt.Name, Quality: 50}, scorer.Score(corrupt))

	missing := entity.FrameFile{Index: 1, Name: "frame_00001.png", Path: filepath.Join(t.TempDir(), "gone.png")}
	got := scorer.Score(missing)
	assert.Equal(t, 50, got.Quality)
	assert.False(t, got.IsBlurry)
}
