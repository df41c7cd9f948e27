package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	f.held = false
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newCycleService(t *testing.T, lock *fakeLock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	good := &countingJob{name: "good"}
	bad := &countingJob{name: "bad", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newCycleService(t, lock, good, bad)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if good.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected both jobs to run once, got good=%d bad=%d", good.runs, bad.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "sweep"}
	lock := &fakeLock{held: true}
	service := newCycleService(t, lock, job)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped while another worker holds the lock, ran %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("must not release a lock it never acquired, releases=%d", lock.releases)
	}
}

func TestRunCyclePropagatesLockError(t *testing.T) {
	job := &countingJob{name: "sweep"}
	service := newCycleService(t, &fakeLock{}, job)
	service.lock = failingLock{}

	if err := service.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
	if job.runs != 0 {
		t.Fatalf("expected no job runs on lock failure, got %d", job.runs)
	}
}

type failingLock struct{}

func (failingLock) Acquire(context.Context) (bool, error) { return false, errors.New("redis down") }
func (failingLock) Release(context.Context) error         { return nil }
