package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"lotorder-engine/internal/artifact"
	"lotorder-engine/internal/export"
	"lotorder-engine/internal/filter"
	"lotorder-engine/internal/model"
	"lotorder-engine/internal/repository"
	"lotorder-engine/pkg/uid"
	"lotorder-engine/pkg/vin"
)

// ProgressFunc receives stage updates for one job. It is scoped to the job
// that carries it; there is no process-wide progress state.
type ProgressFunc func(stage string, done, total int)

// OrderRequest is one order submission for a single dealership.
type OrderRequest struct {
	DealershipID int64
	Mode         model.OrderMode
	VINList      []string
	Snapshot     []model.VehicleRecord
	Progress     ProgressFunc
}

// OrderConfig holds order-pipeline tuning.
type OrderConfig struct {
	// ExportDir is where finished CSV exports land.
	ExportDir string
	// JobTimeout bounds one dealership's whole order, QR phase included.
	JobTimeout time.Duration
	// DefaultQRRoot is used when a dealership has no qr_output_root.
	DefaultQRRoot string
}

// OrderService assembles orders in both CAO and LIST modes and owns the
// ordering guarantees: QR artifacts fully resolve before the export is
// written, and history is recorded only after the export is durable.
type OrderService struct {
	dealerships repository.DealershipRepository
	history     repository.HistoryStore
	engine      *ReconciliationEngine
	sequencer   *artifact.Sequencer
	locker      *DealershipLocker
	status      StatusStore
	cfg         OrderConfig
}

// NewOrderService creates an order service. Returns nil if any required
// dependency is nil; status may be nil (no status publishing).
func NewOrderService(
	dealerships repository.DealershipRepository,
	history repository.HistoryStore,
	sequencer *artifact.Sequencer,
	locker *DealershipLocker,
	status StatusStore,
	cfg OrderConfig,
) *OrderService {
	if dealerships == nil || history == nil || sequencer == nil || locker == nil {
		return nil
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "./data/exports"
	}
	if cfg.DefaultQRRoot == "" {
		cfg.DefaultQRRoot = "./data/qr"
	}
	return &OrderService{
		dealerships: dealerships,
		history:     history,
		engine:      NewReconciliationEngine(history),
		sequencer:   sequencer,
		locker:      locker,
		status:      status,
		cfg:         cfg,
	}
}

// Execute runs one order end to end and returns its immutable result.
// Job-level failures (unknown dealership, empty LIST order, post-export
// persistence failure) return an error and produce no partial export;
// vehicle-level failures are reported inside a successful result.
func (s *OrderService) Execute(ctx context.Context, req OrderRequest) (*model.OrderResult, error) {
	job := model.OrderJob{
		ID:           uid.New(),
		DealershipID: req.DealershipID,
		Mode:         req.Mode,
		VINList:      req.VINList,
		RequestedAt:  time.Now().UTC(),
	}
	log.Printf("[OrderService] Job %s: dealership=%d mode=%s", job.ID, job.DealershipID, job.Mode)

	release, err := s.locker.Acquire(ctx, req.DealershipID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	cfg, err := s.dealerships.GetByID(ctx, req.DealershipID)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("failed to load dealership config: %w", err))
	}
	if cfg == nil {
		return nil, s.fail(ctx, job, ErrUnknownDealership)
	}
	if !cfg.IsActive {
		return nil, s.fail(ctx, job, ErrInactiveDealership)
	}

	s.publish(ctx, job, model.JobStatus{State: model.JobStateRunning})
	progress(req.Progress, "selecting", 0, len(req.Snapshot))

	result := &model.OrderResult{
		JobID:        job.ID,
		DealershipID: job.DealershipID,
		Mode:         job.Mode,
		CreatedAt:    job.RequestedAt,
	}

	switch req.Mode {
	case model.ModeList:
		err = s.selectList(ctx, *cfg, req, result)
	default:
		err = s.selectCAO(ctx, *cfg, req, result)
	}
	if err != nil {
		return nil, s.fail(ctx, job, err)
	}
	progress(req.Progress, "selected", len(result.Included), len(result.Included))

	// Phase 1: QR generation must fully resolve before any export row is
	// built. GenerateAll blocks until every vehicle is success or qr_failed.
	qrRoot := cfg.QROutputRoot
	if qrRoot == "" {
		qrRoot = s.cfg.DefaultQRRoot
	}
	qrResults, err := s.sequencer.GenerateAll(ctx, cfg.ID, result.Included, qrRoot)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("artifact generation failed: %w", err))
	}

	result.QRArtifacts = make(map[string]string, len(qrResults))
	for _, r := range qrResults {
		if r.Status == artifact.StatusSuccess {
			result.QRArtifacts[r.VIN] = r.Path
		} else {
			result.QRFailures = append(result.QRFailures, r.VIN)
		}
	}
	progress(req.Progress, "qr_resolved", len(result.QRArtifacts), len(result.Included))

	// Phase 2: export only rows whose artifact exists on disk.
	rows, skipped := export.BuildRows(result.Included, result.QRArtifacts)
	for _, v := range skipped {
		if _, ok := result.QRArtifacts[v]; ok {
			// Reported success but vanished from disk before export.
			delete(result.QRArtifacts, v)
			result.QRFailures = append(result.QRFailures, v)
		}
	}
	export.SortRows(rows, cfg.OutputRules)

	exportPath, err := export.WriteCSV(s.cfg.ExportDir, job.ID, rows)
	if err != nil {
		return nil, s.fail(ctx, job, fmt.Errorf("failed to write export: %w", err))
	}
	result.ExportPath = exportPath
	progress(req.Progress, "exported", len(rows), len(result.Included))

	// History is recorded strictly after the export is durable. Only
	// exported vehicles are recorded: a qr_failed vehicle stays unseen so
	// the next cycle re-selects it after the operator intervenes.
	entries := make([]model.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, model.HistoryEntry{
			DealershipID: cfg.ID,
			VIN:          row.Vehicle.VIN,
			OrderDate:    model.DateOnly(job.RequestedAt),
			VehicleType:  string(row.Vehicle.Condition),
		})
	}
	if _, err := s.history.BulkRecordSeen(ctx, entries); err != nil {
		perr := &PersistenceError{JobID: job.ID, Err: err}
		s.publish(ctx, job, model.JobStatus{
			State:      model.JobStateFailed,
			Error:      perr.Error(),
			ExportPath: exportPath,
		})
		return nil, perr
	}
	progress(req.Progress, "recorded", len(entries), len(entries))

	state := model.JobStateSuccess
	if len(result.QRFailures) > 0 {
		state = model.JobStatePartial
	}
	s.publish(ctx, job, model.JobStatus{
		State:               state,
		Success:             true,
		VehiclesIncluded:    len(rows),
		VehiclesFiltered:    result.ExcludedCount,
		VehiclesAlreadySeen: result.AlreadySeen,
		QRFailures:          len(result.QRFailures),
		ExportPath:          exportPath,
	})

	log.Printf("[OrderService] Job %s finished: included=%d filtered=%d already_seen=%d qr_failures=%d export=%s",
		job.ID, len(rows), result.ExcludedCount, result.AlreadySeen, len(result.QRFailures), exportPath)
	return result, nil
}

// selectCAO delegates to the reconciliation engine; the included set is
// exactly the "new" set.
func (s *OrderService) selectCAO(ctx context.Context, cfg model.DealershipConfig, req OrderRequest, result *model.OrderResult) error {
	outcome, err := s.engine.Reconcile(ctx, cfg, req.Snapshot)
	if err != nil {
		return err
	}
	result.Included = outcome.New
	result.ExcludedCount = outcome.FilteredCount
	result.AlreadySeen = outcome.AlreadySeen
	result.ErrorCount = outcome.ErrorCount
	return nil
}

// selectList builds the included set from an explicit VIN list. Filtering
// still applies (an operator cannot order an ineligible vehicle by
// mistake), but order history is never consulted: LIST always includes a
// requested, eligible, in-stock VIN even if previously ordered.
func (s *OrderService) selectList(ctx context.Context, cfg model.DealershipConfig, req OrderRequest, result *model.OrderResult) error {
	byVIN := make(map[string]model.VehicleRecord, len(req.Snapshot))
	for _, v := range req.Snapshot {
		cleaned := vin.Clean(v.VIN)
		if !vin.IsValid(cleaned) {
			result.ErrorCount++
			continue
		}
		v.VIN = cleaned
		if prev, ok := byVIN[cleaned]; ok && !v.ObservedAt.After(prev.ObservedAt) {
			continue
		}
		byVIN[cleaned] = v
	}

	requested := make(map[string]bool, len(req.VINList))
	for _, raw := range req.VINList {
		cleaned := vin.Clean(raw)
		if cleaned == "" || requested[cleaned] {
			continue
		}
		requested[cleaned] = true

		v, ok := byVIN[cleaned]
		if !ok {
			result.NotInInventory = append(result.NotInInventory, cleaned)
			continue
		}
		if eligible, _ := filter.IsEligible(cfg.FilterRules, v); !eligible {
			result.ExcludedCount++
			continue
		}
		result.Included = append(result.Included, v)
	}

	if len(result.Included) == 0 {
		return ErrEmptyOrder
	}
	return nil
}

func (s *OrderService) fail(ctx context.Context, job model.OrderJob, err error) error {
	s.publish(ctx, job, model.JobStatus{State: model.JobStateFailed, Error: err.Error()})
	return err
}

func (s *OrderService) publish(ctx context.Context, job model.OrderJob, status model.JobStatus) {
	if s.status == nil {
		return
	}
	status.JobID = job.ID
	status.DealershipID = job.DealershipID
	if err := s.status.Publish(ctx, status); err != nil {
		log.Printf("[OrderService] Warning: failed to publish status for job %s: %v", job.ID, err)
	}
}

func progress(fn ProgressFunc, stage string, done, total int) {
	if fn != nil {
		fn(stage, done, total)
	}
}
