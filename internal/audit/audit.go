// Package audit keeps a local SQLite record of served predictions and model
// lifecycle events, pruned on a cron schedule.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Model lifecycle events.
const (
	EventLoaded   = "loaded"
	EventUnloaded = "unloaded"
)

// Record is one served prediction.
type Record struct {
	ID            string
	RequestID     string
	Model         string
	Label         int
	Probabilities []float64
	Cached        bool
	CreatedAt     time.Time
}

// Log is the audit store.
type Log struct {
	db        *sql.DB
	logger    *zap.Logger
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// Open opens (or creates) the audit database at path and applies migrations.
func Open(path string, retention time.Duration, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Store timestamps as "2006-01-02 15:04:05.999999999-07:00" so they sort as text.
	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Log{
		db:        db,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}, nil
}

// RecordPrediction stores a served prediction.
func (l *Log) RecordPrediction(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = l.now().UTC()
	}

	probs, err := json.Marshal(r.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode probabilities: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO predictions (id, request_id, model, label, probabilities, cached, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.Model, r.Label, string(probs), r.Cached, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// RecordModelEvent stores a lifecycle transition for model.
func (l *Log) RecordModelEvent(ctx context.Context, model, event string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO model_events (id, model, event, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), model, event, l.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert model event: %w", err)
	}
	return nil
}

// Recent returns up to limit predictions, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, request_id, model, label, probabilities, cached, created_at
		 FROM predictions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var probs string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Model, &r.Label, &probs, &r.Cached, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal([]byte(probs), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("failed to decode probabilities: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes predictions and model events older than the retention window
// and returns the number of rows removed.
func (l *Log) Prune(ctx context.Context) (int64, error) {
	if l.retention <= 0 {
		return 0, nil
	}
	cutoff := l.now().UTC().Add(-l.retention)

	var total int64
	for _, table := range []string{"predictions", "model_events"} {
		res, err := l.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// StartPruning schedules Prune with a cron spec such as "@hourly".
func (l *Log) StartPruning(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := l.Prune(context.Background())
		if err != nil {
			l.logger.Warn("audit prune failed", zap.Error(err))
			return
		}
		if n > 0 {
			l.logger.Info("audit records pruned", zap.Int64("rows", n))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	c.Start()
	l.cron = c
	return nil
}

// Close stops the prune scheduler and closes the database.
func (l *Log) Close() error {
	if l.cron != nil {
		<-l.cron.Stop().Done()
	}
	return l.db.Close()
}
