// Package indexer projects the node's committed event log into a relational
// database so that jobs and disputes can be queried by party and status.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigchain/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	cursorName       = "events"
	defaultBatchSize = 256
)

// ErrOutOfOrder is returned by Apply when a record skips ahead of the cursor.
var ErrOutOfOrder = errors.New("indexer: record out of order")

// Source is the subset of the node the indexer consumes.
type Source interface {
	Events(from uint64, limit int) ([]events.Record, error)
	Subscribe() *events.Subscription
}

// Open connects to the configured database.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return db, nil
}

// Indexer keeps the projection tables in step with a Source.
type Indexer struct {
	db        *gorm.DB
	source    Source
	logger    *slog.Logger
	batchSize int
}

// New migrates the schema and returns an indexer reading from source.
func New(db *gorm.DB, source Source, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, source: source, logger: logger, batchSize: defaultBatchSize}, nil
}

// Cursor returns the last applied event sequence.
func (ix *Indexer) Cursor(ctx context.Context) (uint64, error) {
	return loadCursor(ix.db.WithContext(ctx))
}

func loadCursor(tx *gorm.DB) (uint64, error) {
	var cur Cursor
	err := tx.Where("name = ?", cursorName).Limit(1).Find(&cur).Error
	if err != nil {
		return 0, err
	}
	return cur.Seq, nil
}

// Apply projects a single record. Records at or below the cursor are
// ignored so replays are harmless.
func (ix *Indexer) Apply(ctx context.Context, rec events.Record) error {
	if rec.Event == nil {
		return fmt.Errorf("indexer: record %d has no event", rec.Seq)
	}
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := loadCursor(tx)
		if err != nil {
			return err
		}
		if rec.Seq <= last {
			return nil
		}
		if rec.Seq != last+1 {
			return fmt.Errorf("%w: have %d, got %d", ErrOutOfOrder, last, rec.Seq)
		}
		attrs, err := json.Marshal(rec.Event.Attributes)
		if err != nil {
			return err
		}
		at := time.Unix(rec.Time, 0).UTC()
		if err := tx.Create(&EventRow{Seq: rec.Seq, Type: rec.Event.Type, Attributes: string(attrs), Time: at}).Error; err != nil {
			return err
		}
		if err := project(tx, rec.Seq, at, rec.Event); err != nil {
			return fmt.Errorf("indexer: project %s #%d: %w", rec.Event.Type, rec.Seq, err)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"seq", "updated_at"}),
		}).Create(&Cursor{Name: cursorName, Seq: rec.Seq, UpdatedAt: time.Now().UTC()}).Error
	})
}

// CatchUp applies everything the source has committed past the cursor.
func (ix *Indexer) CatchUp(ctx context.Context) (uint64, error) {
	if ix.source == nil {
		return 0, errors.New("indexer: no source")
	}
	last, err := ix.Cursor(ctx)
	if err != nil {
		return 0, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		batch, err := ix.source.Events(last+1, ix.batchSize)
		if err != nil {
			return last, err
		}
		for _, rec := range batch {
			if err := ix.Apply(ctx, rec); err != nil {
				return last, err
			}
			last = rec.Seq
		}
		if len(batch) < ix.batchSize {
			return last, nil
		}
	}
}

// Run catches up and then follows the live feed until ctx is cancelled. A
// gap in the live feed triggers another catch-up from the persisted log.
func (ix *Indexer) Run(ctx context.Context) error {
	if ix.source == nil {
		return errors.New("indexer: no source")
	}
	sub := ix.source.Subscribe()
	defer sub.Close()

	last, err := ix.CatchUp(ctx)
	if err != nil {
		return err
	}
	ix.logger.Info("indexer caught up", slog.Uint64("cursor", last))
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-sub.C():
			if !ok {
				return nil
			}
			if rec.Seq <= last {
				continue
			}
			if rec.Seq > last+1 {
				ix.logger.Warn("indexer missed live records, replaying",
					slog.Uint64("cursor", last), slog.Uint64("seq", rec.Seq))
				if last, err = ix.CatchUp(ctx); err != nil {
					return err
				}
				continue
			}
			if err := ix.Apply(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			last = rec.Seq
		}
	}
}

// JobFilter narrows a job listing. Empty fields match everything.
type JobFilter struct {
	Status string
	Party  string
	Offset int
	Limit  int
}

// Jobs lists projected jobs ordered by ID.
func (ix *Indexer) Jobs(ctx context.Context, filter JobFilter) ([]JobRow, error) {
	q := ix.db.WithContext(ctx).Model(&JobRow{}).Order("id")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if party := strings.TrimSpace(filter.Party); party != "" {
		q = q.Where("client = ? OR freelancer = ?", party, party)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []JobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Disputes lists projected disputes ordered by ID.
func (ix *Indexer) Disputes(ctx context.Context, openOnly bool) ([]DisputeRow, error) {
	q := ix.db.WithContext(ctx).Model(&DisputeRow{}).Order("id")
	if openOnly {
		q = q.Where("resolved = ?", false)
	}
	var rows []DisputeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Jurors lists registered jurors in registration order.
func (ix *Indexer) Jurors(ctx context.Context) ([]JurorRow, error) {
	var rows []JurorRow
	if err := ix.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// EventsByType returns the raw records of one event type.
func (ix *Indexer) EventsByType(ctx context.Context, eventType string, limit int) ([]EventRow, error) {
	q := ix.db.WithContext(ctx).Where("type = ?", eventType).Order("seq")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []EventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
