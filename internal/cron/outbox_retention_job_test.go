package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

type recordingRetentionRepo struct {
	cutoff      time.Time
	minAttempts int
	calls       int
	err         error
}

func (r *recordingRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	r.calls++
	r.cutoff = cutoff
	r.minAttempts = minAttemptCount
	if r.err != nil {
		return 0, r.err
	}
	return 3, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func buildRetentionJob(t *testing.T, repo *recordingRetentionRepo, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	params.DB = passthroughTxRunner{}
	params.Repository = repo
	jobIface, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	return jobIface.(*outboxRetentionJob)
}

func TestOutboxRetentionJobUsesDefaultWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &recordingRetentionRepo{}
	job := buildRetentionJob(t, repo, OutboxRetentionJobParams{})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one delete call, got %d", repo.calls)
	}
	if want := now.AddDate(0, 0, -outboxRetentionDays); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("expected min attempts %d, got %d", outboxMinAttempts, repo.minAttempts)
	}
}

func TestOutboxRetentionJobHonorsCustomWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &recordingRetentionRepo{}
	job := buildRetentionJob(t, repo, OutboxRetentionJobParams{Retention: 7, MinAttempts: 2})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.AddDate(0, 0, -7); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
	if repo.minAttempts != 2 {
		t.Fatalf("expected min attempts 2, got %d", repo.minAttempts)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &recordingRetentionRepo{err: errors.New("boom")}
	job := buildRetentionJob(t, repo, OutboxRetentionJobParams{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
