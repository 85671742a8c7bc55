package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPipelineRejectsInvalidRequest(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.AIEnabled = true

	p := NewPipeline(cfg, zap.NewNop())
	require.NotNil(t, p)

	src := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	session := entity.NewSession(t.TempDir())
	_, err = p.Run(context.Background(), session, src, entity.ExtractionRequest{Mode: entity.ModeFixedRate})
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)
	assert.NoFileExists(t, src)
	assert.NoDirExists(t, session.OutputDir)
}
