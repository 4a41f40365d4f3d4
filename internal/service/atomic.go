package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/recipe-exchange/internal/storage"
	"github.com/sethvargo/go-retry"
)

const defaultRetryBase = 20 * time.Millisecond

// Atomic выполняет функцию в одной транзакции БД: либо фиксируется всё, либо ничего.
// При ErrStorageConflict транзакция откатывается и повторяется заново с чтения,
// но не больше maxRetries раз.
type Atomic struct {
	log        *slog.Logger
	db         *sql.DB
	maxRetries uint64
	retryBase  time.Duration
}

func NewAtomic(log *slog.Logger, db *sql.DB, maxRetries uint64, retryBase time.Duration) *Atomic {
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	return &Atomic{
		log:        log,
		db:         db,
		maxRetries: maxRetries,
		retryBase:  retryBase,
	}
}

// Do запускает fn внутри транзакции. Ошибка fn откатывает транзакцию и возвращается как есть.
func (a *Atomic) Do(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	backoff := retry.NewExponential(a.retryBase)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithMaxRetries(a.maxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := a.once(ctx, op, fn)
		if errors.Is(err, ErrStorageConflict) {
			a.log.Warn("atomic unit conflict",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (a *Atomic) once(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, translate(storage.Classify(err)))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			a.log.Error("transaction rollback failed", slog.String("op", op), slog.Any("error", rbErr))
		}
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, translate(storage.Classify(err)))
	}
	return nil
}
