package analysis

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVision struct {
	mu      sync.Mutex
	calls   int
	mime    []string
	replyFn func(image []byte) (string, error)
}

func (f *fakeVision) Describe(_ context.Context, image []byte, mimeType, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mime = append(f.mime, mimeType)
	f.mu.Unlock()
	if f.replyFn != nil {
		return f.replyFn(image)
	}
	return `{"quality": 88, "isKeyframe": true, "description": "a quiet street", "isBlurry": false}`, nil
}

// plainFrames writes n small files whose content is their own name.
func plainFrames(t *testing.T, n int) []entity.FrameFile {
	t.Helper()
	dir := t.TempDir()
	frames := make([]entity.FrameFile, n)
	for i := range frames {
		frames[i] = frameAt(dir, i+1)
		require.NoError(t, os.WriteFile(frames[i].Path, []byte(frames[i].Name), 0o644))
	}
	return frames
}

func TestSampleFramesEvenStride(t *testing.T) {
	frames := plainFrames(t, 60)

	sample := SampleFrames(frames, SampleSize)
	require.Len(t, sample, 5)
	for i, f := range sample {
		assert.Equal(t, frames[i*12].Name, f.Name)
	}

	assert.Len(t, SampleFrames(frames[:3], SampleSize), 3)
	assert.Nil(t, SampleFrames(nil, SampleSize))
}

func TestAnnotateCapsExternalCalls(t *testing.T) {
	frames := plainFrames(t, 1000)
	client := &fakeVision{}

	anns := NewAnnotator(client, time.Second, zap.NewNop()).Annotate(context.Background(), frames)
	require.Len(t, anns, 5)
	assert.Equal(t, 5, client.calls)

	for i, a := range anns {
		assert.Equal(t, frames[i*200].Name, a.Filename)
		assert.Equal(t, 88, a.Quality)
		assert.True(t, a.IsKeyframe)
		assert.Equal(t, "a quiet street", a.Description)
	}
	for _, m := range client.mime {
		assert.Equal(t, "image/png", m)
	}
}

func TestAnnotateFewFrames(t *testing.T) {
	client := &fakeVision{}
	anns := NewAnnotator(client, time.Second, zap.NewNop()).Annotate(context.Background(), plainFrames(t, 2))
	assert.Len(t, anns, 2)
	assert.Equal(t, 2, client.calls)

	assert.Empty(t, NewAnnotator(client, time.Second, zap.NewNop()).Annotate(context.Background(), nil))
}

func TestAnnotateFailuresAreIsolated(t *testing.T) {
	frames := plainFrames(t, 5)
	client := &fakeVision{replyFn: func(image []byte) (string, error) {
		switch string(image) {
		case frames[1].Name:
			return "", errors.New("503 service unavailable")
		case frames[2].Name:
			return "I think it looks nice", nil
		case frames[3].Name:
			return `{"quality": 140, "isKeyframe": false, "description": "x", "isBlurry": false}`, nil
		}
		return `{"quality": 60, "isKeyframe": false, "description": "ok", "isBlurry": true}`, nil
	}}

	anns := NewAnnotator(client, time.Second, zap.NewNop()).Annotate(context.Background(), frames)
	require.Len(t, anns, 5)

	assert.Equal(t, 60, anns[0].Quality)
	assert.True(t, anns[0].IsBlurry)
	for _, i := range []int{1, 2, 3} {
		assert.Equal(t, FallbackAnnotation(frames[i].Name), anns[i], "frame %d", i)
	}
	assert.Equal(t, 60, anns[4].Quality)
}

func TestAnnotatePanicIsIsolated(t *testing.T) {
	frames := plainFrames(t, 5)
	client := &fakeVision{replyFn: func(image []byte) (string, error) {
		if string(image) == frames[2].Name {
			panic("vision sdk blew up")
		}
		return `{"quality": 77, "isKeyframe": false, "description": "ok", "isBlurry": false}`, nil
	}}

	var anns []entity.AIAnnotation
	require.NotPanics(t, func() {
		anns = NewAnnotator(client, time.Second, zap.NewNop()).Annotate(context.Background(), frames)
	})
	require.Len(t, anns, 5)

	assert.Equal(t, FallbackAnnotation(frames[2].Name), anns[2])
	assert.True(t, anns[2].Fallback)
	for _, i := range []int{0, 1, 3, 4} {
		assert.Equal(t, 77, anns[i].Quality, "frame %d", i)
		assert.False(t, anns[i].Fallback, "frame %d", i)
	}
}

func TestAnnotateTimeoutFallsBack(t *testing.T) {
	client := &slowVision{}
	anns := NewAnnotator(client, 20*time.Millisecond, zap.NewNop()).Annotate(context.Background(), plainFrames(t, 1))
	require.Len(t, anns, 1)
	assert.Equal(t, "unable to analyze", anns[0].Description)
}

type slowVision struct{}

func (slowVision) Describe(ctx context.Context, _ []byte, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnnotateWithoutClient(t *testing.T) {
	frames := plainFrames(t, 7)
	anns := NewAnnotator(nil, time.Second, zap.NewNop()).Annotate(context.Background(), frames)
	require.Len(t, anns, 5)
	for _, a := range anns {
		assert.Equal(t, 70, a.Quality)
		assert.False(t, a.IsKeyframe)
	}
}

func TestParseAnnotationIsStrict(t *testing.T) {
	got, err := ParseAnnotation("f.png", "  {\"quality\": 0, \"description\": \" dark \"}\n")
	require.NoError(t, err)
	assert.Equal(t, entity.AIAnnotation{Filename: "f.png", Quality: 0, Description: "dark"}, got)

	for _, raw := range []string{
		"",
		"```json\n{\"quality\": 50}\n```",
		`Here you go: {"quality": 50}`,
		`{"quality": 50} extra`,
		`{"description": "no score"}`,
		`{"quality": -1}`,
		`[{"quality": 50}]`,
	} {
		_, err := ParseAnnotation("f.png", raw)
		assert.Error(t, err, raw)
	}
}
