package analysis

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerboard() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func frameAt(dir string, idx int) entity.FrameFile {
	name := fmt.Sprintf("frame_%05d.png", idx)
	return entity.FrameFile{Index: idx, Name: name, Path: filepath.Join(dir, name)}
}

// framesFrom writes one PNG per image (nil writes a corrupt file) and returns
// the frame list in order.
func framesFrom(t *testing.T, imgs ...image.Image) []entity.FrameFile {
	t.Helper()
	dir := t.TempDir()
	frames := make([]entity.FrameFile, len(imgs))
	for i, img := range imgs {
		frames[i] = frameAt(dir, i+1)
		if img == nil {
			require.NoError(t, os.WriteFile(frames[i].Path, []byte("not a png"), 0o644))
			continue
		}
		writePNG(t, frames[i].Path, img)
	}
	return frames
}
