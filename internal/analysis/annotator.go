package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
	"go.uber.org/zap"
)

// SampleSize caps the number of vision calls per session.
const SampleSize = 5

const annotationPrompt = `Analyze this video frame and respond with a single JSON object and nothing else, using exactly these keys:
{"quality": <integer 0-100 rating visual quality>, "isKeyframe": <true if this frame is a strong representative keyframe>, "description": "<one short sentence describing the content>", "isBlurry": <true if the frame is blurry>}`

type Annotator struct {
	client     port.VisionClient
	timeout    time.Duration
	sampleSize int
	logger     *zap.Logger
}

// NewAnnotator returns an annotator backed by client. A nil client yields
// fallback annotations for the sampled frames without any external call.
func NewAnnotator(client port.VisionClient, timeout time.Duration, logger *zap.Logger) *Annotator {
	return &Annotator{client: client, timeout: timeout, sampleSize: SampleSize, logger: logger}
}

func FallbackAnnotation(filename string) entity.AIAnnotation {
	return entity.AIAnnotation{
		Filename:    filename,
		Quality:     70,
		IsKeyframe:  false,
		Description: "unable to analyze",
		IsBlurry:    false,
		Fallback:    true,
	}
}

// SampleFrames picks n evenly spaced frames: index i*floor(len/n). Sequences
// no longer than n are returned whole.
func SampleFrames(frames []entity.FrameFile, n int) []entity.FrameFile {
	if n <= 0 || len(frames) == 0 {
		return nil
	}
	if len(frames) <= n {
		return append([]entity.FrameFile(nil), frames...)
	}
	stride := len(frames) / n
	sample := make([]entity.FrameFile, 0, n)
	for i := 0; i < n; i++ {
		sample = append(sample, frames[i*stride])
	}
	return sample
}

// Annotate judges a bounded sample of frames. Calls run concurrently and each
// failure, panics included, is isolated to its own frame.
func (a *Annotator) Annotate(ctx context.Context, frames []entity.FrameFile) []entity.AIAnnotation {
	sample := SampleFrames(frames, a.sampleSize)
	out := make([]entity.AIAnnotation, len(sample))

	var wg sync.WaitGroup
	for i, frame := range sample {
		wg.Add(1)
		go func(i int, frame entity.FrameFile) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.fallback(out, i, frame, fmt.Errorf("panic: %v", r))
				}
			}()
			ann, err := a.annotateFrame(ctx, frame)
			if err != nil {
				a.fallback(out, i, frame, err)
				return
			}
			out[i] = ann
		}(i, frame)
	}
	wg.Wait()

	return out
}

func (a *Annotator) fallback(out []entity.AIAnnotation, i int, frame entity.FrameFile, err error) {
	a.logger.Warn("ai annotation fell back to default",
		zap.String("frame", frame.Name),
		zap.Error(err),
	)
	out[i] = FallbackAnnotation(frame.Name)
}

func (a *Annotator) annotateFrame(ctx context.Context, frame entity.FrameFile) (entity.AIAnnotation, error) {
	if a.client == nil {
		return entity.AIAnnotation{}, errors.New("vision client not configured")
	}

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return entity.AIAnnotation{}, fmt.Errorf("read frame: %w", err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.client.Describe(ctx, data, imageMIME(frame.Name), annotationPrompt)
	if err != nil {
		return entity.AIAnnotation{}, fmt.Errorf("vision request: %w", err)
	}
	return ParseAnnotation(frame.Name, raw)
}

type visionVerdict struct {
	Quality     *int   `json:"quality"`
	IsKeyframe  bool   `json:"isKeyframe"`
	Description string `json:"description"`
	IsBlurry    bool   `json:"isBlurry"`
}

// ParseAnnotation accepts a reply only when the whole of it is one JSON
// object with an in-range quality.
func ParseAnnotation(filename, raw string) (entity.AIAnnotation, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	var v visionVerdict
	if err := dec.Decode(&v); err != nil {
		return entity.AIAnnotation{}, fmt.Errorf("parse vision reply: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return entity.AIAnnotation{}, errors.New("parse vision reply: trailing content")
	}
	if v.Quality == nil {
		return entity.AIAnnotation{}, errors.New("parse vision reply: missing quality")
	}
	if *v.Quality < 0 || *v.Quality > 100 {
		return entity.AIAnnotation{}, fmt.Errorf("parse vision reply: quality %d out of range", *v.Quality)
	}

	return entity.AIAnnotation{
		Filename:    filename,
		Quality:     *v.Quality,
		IsKeyframe:  v.IsKeyframe,
		Description: strings.TrimSpace(v.Description),
		IsBlurry:    v.IsBlurry,
	}, nil
}

func imageMIME(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "image/png"
}
