// pkg/loader/runs.go
package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// RunsTable is the audit table recording one row per entity load
const RunsTable = "ingress_runs"

// EnsureRunsTable creates the audit table if it does not exist yet
func (l *Loader) EnsureRunsTable(ctx context.Context) error {
	text := l.converter.SQLType(model.KindText)
	integer := l.converter.SQLType(model.KindInt)
	timestamp := l.converter.SQLType(model.KindTimestamp)

	meta := &model.TableMetadata{Schema: l.schema, Table: RunsTable}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id %[2]s NOT NULL,
		entity %[2]s NOT NULL,
		source %[2]s,
		target_table %[2]s NOT NULL,
		rows_in %[3]s NOT NULL,
		rows_out %[3]s NOT NULL,
		rows_dropped %[3]s NOT NULL,
		rows_loaded %[3]s NOT NULL,
		started_at %[4]s NOT NULL,
		finished_at %[4]s NOT NULL
	)`, converter.QuoteTable(meta), text, integer, timestamp)

	if _, err := l.target.ExecWithTimeout(ctx, query, time.Minute); err != nil {
		return fmt.Errorf("failed to create %s table: %w", RunsTable, err)
	}
	return nil
}

// RecordRuns inserts the audit records of a pipeline run in one transaction
func (l *Loader) RecordRuns(ctx context.Context, runs []model.CleaningRun) error {
	if len(runs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := l.target.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	meta := &model.TableMetadata{Schema: l.schema, Table: RunsTable}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(`
		INSERT INTO %s
		(run_id, entity, source, target_table, rows_in, rows_out,
		 rows_dropped, rows_loaded, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, converter.QuoteTable(meta))))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, run := range runs {
		var startedAt, finishedAt interface{}
		startedAt, err = l.converter.ConvertValue(model.Timestamp(run.StartedAt), "started_at")
		if err != nil {
			return err
		}
		finishedAt, err = l.converter.ConvertValue(model.Timestamp(run.FinishedAt), "finished_at")
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			run.RunID,
			run.Entity,
			run.Source,
			run.TargetTable,
			run.RowsIn,
			run.RowsOut,
			run.RowsDropped,
			run.RowsLoaded,
			startedAt,
			finishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run record for %s: %w", run.Entity, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	l.logger.Debug("Recorded ingress runs", zap.Int("count", len(runs)))
	return nil
}
