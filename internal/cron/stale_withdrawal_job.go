package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/payloads"
)

const staleWithdrawalDays = 3

// StaleWithdrawalJobParams configure the pending withdrawal watchdog.
type StaleWithdrawalJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	PendingReader pendingWithdrawalReader
	Outbox        outboxEmitter
	PendingDays   int
}

type pendingWithdrawalReader interface {
	ListPendingBefore(ctx context.Context, txnType enums.TransactionType, cutoff time.Time) ([]models.Transaction, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewStaleWithdrawalJob builds the job that flags payout requests stuck in
// review. It emits at most one stalled event per transaction.
func NewStaleWithdrawalJob(params StaleWithdrawalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending withdrawal reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	pendingDays := params.PendingDays
	if pendingDays <= 0 {
		pendingDays = staleWithdrawalDays
	}
	return &staleWithdrawalJob{
		logg:        params.Logger,
		db:          params.DB,
		pending:     params.PendingReader,
		outbox:      params.Outbox,
		pendingDays: pendingDays,
		now:         time.Now,
	}, nil
}

type staleWithdrawalJob struct {
	logg        *logger.Logger
	db          txRunner
	pending     pendingWithdrawalReader
	outbox      outboxEmitter
	pendingDays int
	now         func() time.Time
}

func (j *staleWithdrawalJob) Name() string { return "stale-withdrawals" }

func (j *staleWithdrawalJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.pendingDays) * 24 * time.Hour)
	stalled, err := j.pending.ListPendingBefore(ctx, enums.TransactionTypeWalletWithdrawal, cutoff)
	if err != nil {
		return fmt.Errorf("query pending withdrawals: %w", err)
	}
	count := 0
	var errs []error
	for _, txn := range stalled {
		if err := j.emitStalled(ctx, txn); err != nil {
			j.logg.Error(j.logg.WithField(ctx, "transaction_id", txn.ID.String()), "emit stalled withdrawal", err)
			errs = append(errs, fmt.Errorf("transaction %s: %w", txn.ID, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"count":  count,
	})
	j.logg.Info(logCtx, "stale withdrawal sweep complete")
	return multierr.Combine(errs...)
}

func (j *staleWithdrawalJob) emitStalled(ctx context.Context, txn models.Transaction) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventWithdrawalStalled,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.WithdrawalStalledEvent{
				TransactionID: txn.ID,
				WalletID:      txn.RelatedEntityID,
				Amount:        txn.TotalAmount,
				Currency:      string(txn.Currency),
				PendingDays:   j.pendingDays,
				RequestedAt:   txn.CreatedAt,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
