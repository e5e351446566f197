package repository

import (
	"context"

	"canvascast/internal/domain/model"
)

type CreditLedgerRepository interface {
	// Insert appends one immutable entry. Entries are never updated or
	// deleted.
	Insert(ctx context.Context, tx Tx, e *model.CreditLedgerEntry) error
	// BalanceByUser returns the sum of all entry amounts for the user.
	BalanceByUser(ctx context.Context, tx Tx, userID string) (int, error)
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.CreditLedgerEntry, error)
}
