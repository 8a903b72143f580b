package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/basket"
	"github.com/rewired-gh/rulesweep/internal/logger"
	"github.com/rewired-gh/rulesweep/internal/miner"
	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/storage"
	"github.com/rewired-gh/rulesweep/internal/summary"
	"github.com/rewired-gh/rulesweep/internal/sweep"
	"github.com/rewired-gh/rulesweep/internal/telegram"
)

const (
	modeGrid        = "grid"
	modeSensitivity = "sensitivity"
)

// session is one driver invocation: the encoded dataset, the driver and the
// bookkeeping around it (run history, manifest, notification).
type session struct {
	app     *app
	mode    string
	params  map[string]interface{}
	started time.Time

	runID  string
	store  *storage.Storage
	matrix *basket.Matrix
	writer *summary.Writer
	driver *sweep.Driver
}

// begin loads and encodes the dataset and prepares the driver. A missing
// dataset is fatal and returned before anything is written.
func (a *app) begin(ctx context.Context, mode string, params map[string]interface{}) (*session, error) {
	s := &session{app: a, mode: mode, params: params, started: time.Now()}
	cfg := a.cfg

	txs, err := basket.Load(ctx, cfg.Data.Path, basket.Columns{
		Invoice:     cfg.Data.InvoiceColumn,
		Item:        cfg.Data.ItemColumn,
		Quantity:    cfg.Data.QuantityColumn,
		Date:        cfg.Data.DateColumn,
		DateLayouts: cfg.Data.DateLayouts,
	})
	if err != nil {
		return nil, err
	}
	b := basket.CreateBasket(txs)
	s.matrix = b.Encode()
	logger.Info("Loaded %d rows: %d invoices, %d distinct items", len(txs), b.Len(), s.matrix.NumItems())

	metric, err := miner.ParseMetric(cfg.Miner.Metric)
	if err != nil {
		return nil, err
	}
	s.writer = summary.NewWriter(cfg.Output.Dir, summary.Options{XLSX: cfg.Output.XLSX})
	s.driver = sweep.New(
		miner.New(s.matrix, miner.Options{MaxLen: cfg.Miner.MaxLen}),
		s.writer,
		sweep.Options{
			Workers:             cfg.Sweep.Workers,
			Metric:              metric,
			GenerationThreshold: cfg.Miner.GenerationThreshold,
		},
	)

	s.runID = uuid.New().String()
	if cfg.Storage.DBPath != "" {
		st, err := openStorage(ctx, cfg.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		run, err := st.CreateRun(ctx, mode, filepath.Base(cfg.Data.Path), params)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		s.store = st
		s.runID = run.ID
	}
	return s, nil
}

func openStorage(ctx context.Context, path string) (*storage.Storage, error) {
	st, err := storage.New(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// finish records a completed sweep: manifest, run history and notification.
// Only the manifest is required and a failure to write it fails the run;
// history and notification failures are logged.
func (s *session) finish(ctx context.Context, points []models.RunPoint, degraded []sweep.PointError, details []summary.PointDetail, artifacts []string) error {
	defer s.close()
	cfg := s.app.cfg
	finished := time.Now()

	degradedNames := make([]string, len(degraded))
	for i, d := range degraded {
		degradedNames[i] = d.Point
	}

	if cfg.Output.Manifest {
		m := summary.Manifest{
			RunID:        s.runID,
			Mode:         s.mode,
			Dataset:      cfg.Data.Path,
			Transactions: s.matrix.NumTransactions(),
			Items:        s.matrix.NumItems(),
			Parameters:   s.params,
			Points:       len(points),
			Details:      details,
			Artifacts:    artifacts,
			StartedAt:    s.started.UTC(),
			FinishedAt:   finished.UTC(),
		}
		for _, d := range degraded {
			m.Degraded = append(m.Degraded, summary.DegradedPoint{Point: d.Point, Reason: d.Err.Error()})
		}
		path, err := s.writer.WriteManifest(s.mode+"_manifest.yaml", m)
		if err != nil {
			s.fail(ctx, err)
			return err
		}
		logger.Debug("Manifest written to %s", path)
	}

	if s.store != nil {
		if err := s.store.AddPoints(ctx, s.runID, points); err != nil {
			logger.Error("Failed to record points of run %s: %v", s.runID, err)
		} else if err := s.store.CompleteRun(ctx, s.runID, models.RunStatusComplete, len(points), len(degraded)); err != nil {
			logger.Error("Failed to complete run %s: %v", s.runID, err)
		}
		if n, err := s.store.RotateRuns(ctx, cfg.Storage.MaxRuns); err != nil {
			logger.Warn("Failed to rotate run history: %v", err)
		} else if n > 0 {
			logger.Debug("Rotated %d old runs out of history", n)
		}
	}

	s.notify(ctx, func(c *telegram.Client) error {
		return c.SendRunSummary(ctx, telegram.RunSummary{
			RunID:    s.runID,
			Mode:     s.mode,
			Dataset:  filepath.Base(cfg.Data.Path),
			Points:   points,
			Degraded: degradedNames,
			Elapsed:  finished.Sub(s.started),
		})
	})
	return nil
}

// fail records a sweep aborted by a fatal error.
func (s *session) fail(ctx context.Context, runErr error) {
	defer s.close()
	if s.store != nil {
		if err := s.store.CompleteRun(context.WithoutCancel(ctx), s.runID, models.RunStatusFailed, 0, 0); err != nil {
			logger.Error("Failed to mark run %s as failed: %v", s.runID, err)
		}
	}
	s.notify(ctx, func(c *telegram.Client) error {
		return c.SendError(context.WithoutCancel(ctx), s.mode, runErr)
	})
}

func (s *session) notify(ctx context.Context, send func(*telegram.Client) error) {
	cfg := s.app.cfg.Telegram
	if !cfg.Enabled {
		logger.Debug("Telegram notifications disabled")
		return
	}
	client, err := telegram.NewClient(cfg.BotToken, cfg.ChatID, cfg.MaxRetries, cfg.RetryDelayBase)
	if err != nil {
		logger.Warn("Failed to initialize Telegram client: %v", err)
		return
	}
	if err := send(client); err != nil {
		logger.Warn("Failed to send Telegram notification: %v", err)
	}
}

func (s *session) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
	s.store = nil
}

// degradedSet indexes degraded point names.
func degradedSet(degraded []sweep.PointError) map[string]bool {
	set := make(map[string]bool, len(degraded))
	for _, d := range degraded {
		set[d.Point] = true
	}
	return set
}

func gridPoints(res *sweep.Result[models.GridRecord]) []models.RunPoint {
	bad := degradedSet(res.Degraded)
	rows := res.Table.Rows()
	points := make([]models.RunPoint, len(rows))
	for i, r := range rows {
		name := sweep.GridPoint(r.MinSupport, r.MinConfidence, r.MinLift)
		points[i] = models.RunPoint{
			Point:            name,
			MinSupport:       r.MinSupport,
			MinConfidence:    r.MinConfidence,
			MinLift:          r.MinLift,
			FrequentItemsets: r.FrequentItemsets,
			RulesAfterFilter: r.RulesAfterFilter,
			Degraded:         bad[name],
		}
	}
	return points
}

func sensitivityPoints(res *sweep.Result[models.SensitivityRecord], minConfidence, minLift float64) []models.RunPoint {
	bad := degradedSet(res.Degraded)
	rows := res.Table.Rows()
	points := make([]models.RunPoint, len(rows))
	for i, r := range rows {
		name := sweep.SensitivityPoint(r.MinSupport)
		points[i] = models.RunPoint{
			Point:              name,
			MinSupport:         r.MinSupport,
			MinConfidence:      minConfidence,
			MinLift:            minLift,
			FrequentItemsets:   r.FrequentItemsets,
			RulesAfterFilter:   r.RulesAfterFilter,
			NumClusters:        r.NumClusters,
			LargestClusterSize: r.LargestClusterSize,
			Degraded:           bad[name],
		}
	}
	return points
}

func artifacts[R models.Record](res *sweep.Result[R]) []string {
	out := make([]string, 0, len(res.Summary)+len(res.Rules))
	out = append(out, res.Summary...)
	return append(out, res.Rules...)
}

func requireStorage(a *app) error {
	if a.cfg.Storage.DBPath == "" {
		return eris.New("run history is disabled: set storage.db_path")
	}
	return nil
}
