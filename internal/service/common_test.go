package service_test

import (
	"context"

	"campaign-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeTxManager выполняет fn напрямую, без настоящей транзакции.
// Моки репозиториев принимают nil вместо pgx.Tx.
type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func dmAuth() models.AuthContext {
	return models.AuthContext{UserID: uuid.New(), Roles: []string{models.RoleDM}}
}

func playerAuth(userID uuid.UUID) models.AuthContext {
	return models.AuthContext{UserID: userID, Roles: []string{models.RolePlayer}}
}
