package entity

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        string
	CreatedAt time.Time
	OutputDir string
}

// NewSession allocates a session whose output directory lives under frameRoot.
// The directory itself is created by the pipeline.
func NewSession(frameRoot string) *Session {
	id := uuid.New().String()
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		OutputDir: filepath.Join(frameRoot, id),
	}
}
