package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/repository"
)

type evalRepository struct {
	db *sql.DB
}

// NewEvalRepository creates a new EvalRepository implementation
func NewEvalRepository(db *sql.DB) repository.EvalRepository {
	return &evalRepository{db: db}
}

func (r *evalRepository) Get(ctx context.Context, fen string) (*models.CachedEval, error) {
	log := logger.FromContext(ctx).WithPrefix("eval_repo")

	query, args, err := sqlBuilder.Select("fen", "cp", "source", "updated_at").
		From("evaluations").
		Where(squirrel.Eq{"fen": fen}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ev models.CachedEval
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&ev.FEN, &ev.CP, &ev.Source, &ev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get evaluation: %v", err)
		return nil, err
	}
	return &ev, nil
}

func (r *evalRepository) Put(ctx context.Context, ev models.CachedEval) error {
	log := logger.FromContext(ctx).WithPrefix("eval_repo")

	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = time.Now()
	}

	query, args, err := sqlBuilder.Insert("evaluations").
		Columns("fen", "cp", "source", "updated_at").
		Values(ev.FEN, ev.CP, ev.Source, ev.UpdatedAt.UTC()).
		Suffix("ON CONFLICT(fen) DO UPDATE SET cp = excluded.cp, source = excluded.source, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to store evaluation: %v", err)
		return err
	}
	log.Debug("stored evaluation: cp=%d, source=%s", ev.CP, ev.Source)
	return nil
}

func (r *evalRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sqlBuilder.Select("COUNT(*)").From("evaluations").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// Prune deletes evaluations last written before olderThan.
func (r *evalRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("eval_repo")

	query, args, err := sqlBuilder.Delete("evaluations").
		Where(squirrel.Lt{"updated_at": olderThan.UTC()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to prune evaluations: %v", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Info("pruned %d evaluations", n)
	return n, nil
}
