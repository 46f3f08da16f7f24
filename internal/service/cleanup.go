package service

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the artifact retention sweeper.
type SweeperConfig struct {
	// Roots are the QR output directories to sweep.
	Roots []string

	// Retention is the age after which an artifact file is deleted.
	// Default: 30 days.
	Retention time.Duration

	// SweepInterval is how often the sweep runs. Default: 24 hours.
	SweepInterval time.Duration
}

// ArtifactSweeper periodically deletes old QR artifact files from finished
// orders. It only ever touches image files; history rows are never deleted
// by the core.
type ArtifactSweeper struct {
	config   SweeperConfig
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	running  bool
}

// NewArtifactSweeper creates an artifact sweeper.
func NewArtifactSweeper(config SweeperConfig) *ArtifactSweeper {
	if config.Retention == 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = 24 * time.Hour
	}
	return &ArtifactSweeper{
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *ArtifactSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.config.SweepInterval)
	s.mu.Unlock()

	log.Printf("[ArtifactSweeper] Started - Interval: %v, Retention: %v",
		s.config.SweepInterval, s.config.Retention)

	go s.run()
}

func (s *ArtifactSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			if deleted, err := s.RunNow(); err != nil {
				log.Printf("[ArtifactSweeper] Error during sweep: %v", err)
			} else if deleted > 0 {
				log.Printf("[ArtifactSweeper] Removed %d expired artifacts", deleted)
			}
		case <-s.stopCh:
			log.Printf("[ArtifactSweeper] Stopped")
			return
		}
	}
}

// RunNow sweeps immediately and returns the number of files removed.
func (s *ArtifactSweeper) RunNow() (int, error) {
	cutoff := time.Now().Add(-s.config.Retention)
	deleted := 0

	for _, root := range s.config.Roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ".png") {
				return nil
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(path); err != nil {
					log.Printf("[ArtifactSweeper] Failed to remove %s: %v", path, err)
					return nil
				}
				deleted++
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Stop stops the sweep loop.
func (s *ArtifactSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.running = false
	})
}
