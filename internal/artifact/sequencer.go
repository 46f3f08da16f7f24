package artifact

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lotorder-engine/internal/model"
	"lotorder-engine/internal/qr"
)

// Status of one vehicle's QR artifact after Phase 1 resolves.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "qr_failed"
)

// Result is the Phase-1 outcome for one vehicle.
type Result struct {
	VIN    string
	Path   string
	Status Status
	Err    error
}

// Config holds sequencer tuning. QR generation is the highest-latency,
// highest-failure-rate step in an order, so it is the only step that runs
// with internal concurrency.
type Config struct {
	// Workers bounds concurrent calls to the external QR service.
	Workers int
	// Retries is the number of extra attempts after a failed call.
	Retries int
	// CallTimeout bounds each individual QR call.
	CallTimeout time.Duration
}

// DefaultConfig returns the sequencer defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     6,
		Retries:     1,
		CallTimeout: 10 * time.Second,
	}
}

// Sequencer enforces the two-phase contract between QR generation and
// export: GenerateAll returns only once every vehicle has resolved to
// success or an explicit failure, so export rows can never reference an
// artifact that was not written.
type Sequencer struct {
	gen qr.Generator
	cfg Config
}

// NewSequencer creates a sequencer over the given QR generator.
func NewSequencer(gen qr.Generator, cfg Config) *Sequencer {
	if cfg.Workers <= 0 {
		cfg.Workers = 6
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Sequencer{gen: gen, cfg: cfg}
}

// GenerateAll runs Phase 1 for an order: one QR artifact per vehicle,
// written under outputRoot/<dealership_id>/<vin>.png. It blocks until every
// vehicle resolves. Vehicles whose calls fail after retries, or whose calls
// are cancelled by the job deadline, are marked qr_failed; QR failures are
// per-vehicle exclusions, never a job failure.
func (s *Sequencer) GenerateAll(ctx context.Context, dealershipID int64, vehicles []model.VehicleRecord, outputRoot string) ([]Result, error) {
	if len(vehicles) == 0 {
		return nil, nil
	}

	dir := filepath.Join(outputRoot, fmt.Sprintf("%d", dealershipID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}

	jobs := make(chan model.VehicleRecord)
	results := make([]Result, 0, len(vehicles))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	workers := s.cfg.Workers
	if workers > len(vehicles) {
		workers = len(vehicles)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				res := s.generateOne(ctx, v, dir)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}()
	}

	for _, v := range vehicles {
		jobs <- v
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Status == StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("[ArtifactSequencer] Dealership %d: %d/%d QR artifacts failed", dealershipID, failed, len(vehicles))
	}
	return results, nil
}

// generateOne renders and writes a single artifact with bounded retries.
func (s *Sequencer) generateOne(ctx context.Context, v model.VehicleRecord, dir string) Result {
	path := filepath.Join(dir, v.VIN+".png")

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if ctx.Err() != nil {
			// Job deadline reached: mark qr_failed instead of blocking the job.
			return Result{VIN: v.VIN, Status: StatusFailed, Err: ctx.Err()}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		img, err := s.gen.GenerateQR(callCtx, v.VIN)
		cancel()

		if err != nil {
			lastErr = err
			log.Printf("[ArtifactSequencer] QR attempt %d failed for vin %s: %v", attempt+1, v.VIN, err)
			continue
		}

		if err := os.WriteFile(path, img, 0o644); err != nil {
			lastErr = fmt.Errorf("failed to write artifact: %w", err)
			continue
		}
		return Result{VIN: v.VIN, Path: path, Status: StatusSuccess}
	}

	return Result{VIN: v.VIN, Status: StatusFailed, Err: lastErr}
}
