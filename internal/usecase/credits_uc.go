package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
	"canvascast/internal/infra/metrics"
	"canvascast/internal/pipeline"
)

// Compile-time checks
var _ CreditsUseCase = (*creditsUC)(nil)
var _ pipeline.CreditService = (*creditsUC)(nil)

type CreditsUseCase interface {
	// Reserve places a hold of amount credits for a job. The balance check and
	// the reserve entry happen in one transaction; an uncovered hold fails with
	// domain.ErrInsufficientCredits and writes nothing.
	Reserve(ctx context.Context, userID, jobID string, amount int) error
	// RefundReservation returns the full hold to the user. Idempotent per job:
	// at most one refund entry is ever written no matter how many attempts
	// fail afterwards.
	RefundReservation(ctx context.Context, userID, jobID string, amount int, note string) error
	// ConvertToSpend settles the hold as work performed. The release and the
	// spend are written together so the balance never double-counts the hold.
	ConvertToSpend(ctx context.Context, userID, jobID string, amount int, note string) error
	// ReleaseReservation returns the hold without charging.
	ReleaseReservation(ctx context.Context, userID, jobID string, amount int, note string) error
	Purchase(ctx context.Context, userID string, amount int, note string) error
	Balance(ctx context.Context, userID string) (int, error)
}

type creditsUC struct {
	ledger repository.CreditLedgerRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewCreditsUseCase(ledger repository.CreditLedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *creditsUC {
	return &creditsUC{ledger: ledger, tm: tm, log: logger}
}

func (u *creditsUC) Reserve(ctx context.Context, userID, jobID string, amount int) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		balance, err := u.ledger.BalanceByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if balance < amount {
			u.log.Warn().Str("user_id", userID).Str("job_id", jobID).
				Int("balance", balance).Int("amount", amount).Msg("reservation rejected")
			return domain.ErrInsufficientCredits
		}
		return u.ledger.Insert(ctx, tx, &model.CreditLedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			JobID:     jobID,
			Type:      model.LedgerReserve,
			Amount:    -amount,
			Note:      "reserved for job",
			CreatedAt: time.Now(),
		})
	})
	if err == nil {
		metrics.AddCreditsReserved(int64(amount))
	}
	return err
}

func (u *creditsUC) RefundReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		applied = false
		settled, err := u.hasEntry(ctx, tx, jobID, model.LedgerRefund, model.LedgerRelease, model.LedgerSpend)
		if err != nil {
			return err
		}
		if settled {
			u.log.Debug().Str("job_id", jobID).Msg("reservation already settled, refund skipped")
			return nil
		}
		applied = true
		return u.ledger.Insert(ctx, tx, &model.CreditLedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			JobID:     jobID,
			Type:      model.LedgerRefund,
			Amount:    amount,
			Note:      note,
			CreatedAt: time.Now(),
		})
	})
	if err == nil && applied {
		metrics.AddCreditsRefunded(int64(amount))
	}
	return err
}

func (u *creditsUC) ConvertToSpend(ctx context.Context, userID, jobID string, amount int, note string) error {
	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		applied = false
		settled, err := u.hasEntry(ctx, tx, jobID, model.LedgerRefund, model.LedgerRelease, model.LedgerSpend)
		if err != nil {
			return err
		}
		if settled {
			u.log.Debug().Str("job_id", jobID).Msg("reservation already settled, spend skipped")
			return nil
		}
		applied = true
		now := time.Now()
		// Release the hold, then charge it back: the pair nets to zero against
		// the negative reserve entry already on the ledger.
		if err := u.ledger.Insert(ctx, tx, &model.CreditLedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			JobID:     jobID,
			Type:      model.LedgerRelease,
			Amount:    amount,
			Note:      note,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return u.ledger.Insert(ctx, tx, &model.CreditLedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			JobID:     jobID,
			Type:      model.LedgerSpend,
			Amount:    -amount,
			Note:      note,
			CreatedAt: now,
		})
	})
	if err == nil && applied {
		metrics.AddCreditsSpent(int64(amount))
	}
	return err
}

func (u *creditsUC) ReleaseReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		settled, err := u.hasEntry(ctx, tx, jobID, model.LedgerRefund, model.LedgerRelease, model.LedgerSpend)
		if err != nil {
			return err
		}
		if settled {
			return nil
		}
		return u.ledger.Insert(ctx, tx, &model.CreditLedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			JobID:     jobID,
			Type:      model.LedgerRelease,
			Amount:    amount,
			Note:      note,
			CreatedAt: time.Now(),
		})
	})
}

func (u *creditsUC) Purchase(ctx context.Context, userID string, amount int, note string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	return u.ledger.Insert(ctx, nil, &model.CreditLedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      model.LedgerPurchase,
		Amount:    amount,
		Note:      note,
		CreatedAt: time.Now(),
	})
}

func (u *creditsUC) Balance(ctx context.Context, userID string) (int, error) {
	return u.ledger.BalanceByUser(ctx, nil, userID)
}

// hasEntry reports whether the job's ledger already carries any entry of the
// given types.
func (u *creditsUC) hasEntry(ctx context.Context, tx repository.Tx, jobID string, types ...model.LedgerEntryType) (bool, error) {
	entries, err := u.ledger.ListByJob(ctx, tx, jobID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		for _, t := range types {
			if e.Type == t {
				return true, nil
			}
		}
	}
	return false, nil
}
