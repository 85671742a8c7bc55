package analysis

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/framescope/framescope/internal/domain/entity"
	"go.uber.org/zap"
)

const (
	// QualityPrefix bounds how many frames of a session are scored.
	QualityPrefix = 100
	// BlurThreshold is the score below which a frame counts as blurry.
	BlurThreshold = 30

	fallbackQuality = 50
	sharpnessScale  = 1.5
)

type QualityScorer struct {
	logger *zap.Logger
}

func NewQualityScorer(logger *zap.Logger) *QualityScorer {
	return &QualityScorer{logger: logger}
}

func (s *QualityScorer) Score(frame entity.FrameFile) entity.FrameAnalysis {
	img, err := decodeImage(frame.Path)
	if err != nil {
		s.logger.Warn("quality scoring fell back to default",
			zap.String("frame", frame.Name),
			zap.Error(err),
		)
		return entity.FrameAnalysis{Filename: frame.Name, Quality: fallbackQuality}
	}

	score := QualityFromStdDev(channelStdDev(img))
	return entity.FrameAnalysis{
		Filename: frame.Name,
		Quality:  score,
		IsBlurry: score < BlurThreshold,
	}
}

// QualityFromStdDev maps the mean per-channel standard deviation (0-255 scale)
// linearly onto 0-100, saturating at 100.
func QualityFromStdDev(stddev float64) int {
	score := math.Round(stddev * sharpnessScale)
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return int(score)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// channelStdDev returns the R, G and B standard deviations averaged together.
func channelStdDev(img image.Image) float64 {
	var sum, sumSq [3]float64
	var n float64

	add := func(r, g, b uint8) {
		for c, v := range [3]float64{float64(r), float64(g), float64(b)} {
			sum[c] += v
			sumSq[c] += v * v
		}
		n++
	}

	bounds := img.Bounds()
	switch src := img.(type) {
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for i := 0; i+4 <= len(row); i += 4 {
				add(row[i], row[i+1], row[i+2])
			}
		}
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for i := 0; i+4 <= len(row); i += 4 {
				add(row[i], row[i+1], row[i+2])
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				add(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			}
		}
	}

	if n == 0 {
		return 0
	}

	var total float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance := sumSq[c]/n - mean*mean
		if variance > 0 {
			total += math.Sqrt(variance)
		}
	}
	return total / 3
}
