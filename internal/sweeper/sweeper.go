// Package sweeper removes temp recordings that were never finalized.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/voxnotes/internal/metrics"
	"github.com/starford/voxnotes/internal/models"
)

// TempStore is the part of storage.Provider the sweeper needs.
type TempStore interface {
	ListTemp() ([]models.TempRecording, error)
	Delete(kind models.ArtifactKind, name string) (bool, error)
}

// Sweep deletes temp recordings last modified before now-olderThan and
// returns how many were removed. A failed delete is logged and skipped.
func Sweep(files TempStore, olderThan time.Duration, now time.Time, logger *slog.Logger) (int, error) {
	temps, err := files.ListTemp()
	if err != nil {
		return 0, fmt.Errorf("sweeper: list temp: %w", err)
	}

	cutoff := now.Add(-olderThan)
	removed := 0
	for _, tr := range temps {
		if !tr.UpdatedAt.Before(cutoff) {
			continue
		}
		ok, err := files.Delete(models.ArtifactAudio, tr.Name)
		if err != nil {
			logger.Warn("sweeper: delete failed", slog.String("temp", tr.Name), slog.String("error", err.Error()))
			continue
		}
		if ok {
			removed++
			logger.Debug("sweeper: removed orphan", slog.String("temp", tr.Name), slog.Time("updated_at", tr.UpdatedAt))
		}
	}
	return removed, nil
}

// Sweeper runs Sweep periodically.
type Sweeper struct {
	files    TempStore
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a sweeper removing temps older than maxAge every interval.
func New(files TempStore, maxAge, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		files:    files,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper: started",
		slog.Duration("interval", s.interval),
		slog.Duration("max_age", s.maxAge))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.once()
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) once() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweeper: panic", slog.Any("panic", r))
		}
	}()
	n, err := Sweep(s.files, s.maxAge, s.now(), s.logger)
	if err != nil {
		s.logger.Error("sweeper: sweep failed", slog.String("error", err.Error()))
		return
	}
	s.metrics.Swept(n)
	if n > 0 {
		s.logger.Info("sweeper: removed orphan temp recordings", slog.Int("count", n))
	}
}
