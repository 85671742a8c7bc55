package retention

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/framescope/framescope/internal/infra/metrics"
	"go.uber.org/zap"
)

// Sweeper removes top-level entries of its directories whose modification
// time is older than maxAge.
type Sweeper struct {
	dirs     []string
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewSweeper(dirs []string, maxAge, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		dirs:     dirs,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start sweeps every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retention sweeper started",
		zap.Strings("dirs", s.dirs),
		zap.Duration("max_age", s.maxAge),
		zap.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass and returns the number of entries removed.
func (s *Sweeper) Sweep() int {
	cutoff := s.now().Add(-s.maxAge)
	removed := 0

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to read retention dir", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}

		for _, e := range entries {
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				s.logger.Warn("failed to remove expired entry", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
			s.logger.Debug("removed expired entry", zap.String("path", path))
		}
	}

	if removed > 0 {
		metrics.SweptEntriesTotal.Add(float64(removed))
		s.logger.Info("retention sweep finished", zap.Int("removed", removed))
	}
	return removed
}
