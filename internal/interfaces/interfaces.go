package interfaces

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound стандартная ошибка, когда запись не найдена в репозитории.
var ErrNotFound = errors.New("not found")

// ErrPending - ключ идемпотентности зарезервирован, но результат ещё не записан.
var ErrPending = errors.New("reserved, result not stored yet")

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so a repository method can run
// either standalone or inside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
