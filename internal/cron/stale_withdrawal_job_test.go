package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox"
	"github.com/kasuwa-ng/marketplace-backend/pkg/outbox/payloads"
)

func TestStaleWithdrawalJobEmitsStalledEvents(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	walletID := uuid.New()
	txnID := uuid.New()
	reader := &fakePendingWithdrawalReader{
		rows: []models.Transaction{{
			ID:              txnID,
			Type:            enums.TransactionTypeWalletWithdrawal,
			Status:          enums.TransactionStatusPending,
			TotalAmount:     decimal.RequireFromString("101000"),
			Currency:        enums.CurrencyNGN,
			RelatedEntityID: walletID,
			CreatedAt:       now.Add(-5 * 24 * time.Hour),
		}},
	}
	emitter := &fakeStalledEmitter{}
	job := newStaleWithdrawalJob(t, reader, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.UTC().Add(-staleWithdrawalDays * 24 * time.Hour)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if reader.lastType != enums.TransactionTypeWalletWithdrawal {
		t.Fatalf("expected withdrawal type, got %s", reader.lastType)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventWithdrawalStalled {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != txnID {
		t.Fatalf("aggregate must be the transaction")
	}
	payload, ok := event.Data.(payloads.WithdrawalStalledEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if payload.WalletID != walletID {
		t.Fatalf("wallet id mismatch")
	}
	if payload.PendingDays != staleWithdrawalDays {
		t.Fatalf("expected pending days %d, got %d", staleWithdrawalDays, payload.PendingDays)
	}
}

func TestStaleWithdrawalJobNoPendingRows(t *testing.T) {
	reader := &fakePendingWithdrawalReader{}
	emitter := &fakeStalledEmitter{}
	job := newStaleWithdrawalJob(t, reader, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events, got %d", len(emitter.events))
	}
}

func TestStaleWithdrawalJobPropagatesReaderError(t *testing.T) {
	reader := &fakePendingWithdrawalReader{err: errors.New("boom")}
	job := newStaleWithdrawalJob(t, reader, &fakeStalledEmitter{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStaleWithdrawalJobContinuesPastEmitFailure(t *testing.T) {
	reader := &fakePendingWithdrawalReader{
		rows: []models.Transaction{
			{ID: uuid.New(), Currency: enums.CurrencyNGN, TotalAmount: decimal.RequireFromString("5000")},
			{ID: uuid.New(), Currency: enums.CurrencyNGN, TotalAmount: decimal.RequireFromString("7000")},
		},
	}
	emitter := &fakeStalledEmitter{failFirst: true}
	job := newStaleWithdrawalJob(t, reader, emitter)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(emitter.events) != 1 {
		t.Fatalf("second withdrawal should still be swept, got %d events", len(emitter.events))
	}
}

func newStaleWithdrawalJob(t *testing.T, reader *fakePendingWithdrawalReader, emitter *fakeStalledEmitter) *staleWithdrawalJob {
	t.Helper()
	jobIface, err := NewStaleWithdrawalJob(StaleWithdrawalJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DB:            staleWithdrawalTxRunner{},
		PendingReader: reader,
		Outbox:        emitter,
	})
	if err != nil {
		t.Fatalf("NewStaleWithdrawalJob: %v", err)
	}
	job, ok := jobIface.(*staleWithdrawalJob)
	if !ok {
		t.Fatalf("expected staleWithdrawalJob, got %T", jobIface)
	}
	return job
}

type fakePendingWithdrawalReader struct {
	rows       []models.Transaction
	err        error
	lastCutoff time.Time
	lastType   enums.TransactionType
}

func (f *fakePendingWithdrawalReader) ListPendingBefore(ctx context.Context, txnType enums.TransactionType, cutoff time.Time) ([]models.Transaction, error) {
	f.lastCutoff = cutoff
	f.lastType = txnType
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeStalledEmitter struct {
	events    []outbox.DomainEvent
	failFirst bool
	calls     int
}

func (f *fakeStalledEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return errors.New("emit failed")
	}
	f.events = append(f.events, event)
	return nil
}

type staleWithdrawalTxRunner struct{}

func (staleWithdrawalTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
