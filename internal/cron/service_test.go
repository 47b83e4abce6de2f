package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/metrics"
	"github.com/angelmondragon/taxsync/pkg/redis"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: ProcessQueueJobName}
	bad := &countingJob{name: LogCleanupJobName, err: errors.New("boom")}
	registry, err := NewRegistry(bad, ok)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), LogCleanupJobName) {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if lock.held {
		t.Fatal("lock must be released after the cycle")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: ProcessQueueJobName}
	registry, _ := NewRegistry(job)
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: &fakeLock{held: true}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
	if err := svc.RunJob(context.Background(), ProcessQueueJobName); err == nil {
		t.Fatal("expected RunJob to fail while the lock is held")
	}
}

func TestRunJob(t *testing.T) {
	job := &countingJob{name: ProcessQueueJobName}
	registry, _ := NewRegistry(job)
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: NoopLock{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.RunJob(context.Background(), ProcessQueueJobName); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if err := svc.RunJob(context.Background(), "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}
	if job.runs != 1 {
		t.Fatalf("expected one run, got %d", job.runs)
	}
}

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockOwnership(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	ctx := context.Background()
	a, err := NewRedisLock(store, "taxsync:lock:cron-worker:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	b, _ := NewRedisLock(store, "taxsync:lock:cron-worker:test", time.Minute)

	if got, _ := a.Acquire(ctx); !got {
		t.Fatal("first acquire should succeed")
	}
	if got, _ := b.Acquire(ctx); got {
		t.Fatal("second acquire should fail")
	}

	// Simulate expiry and takeover by b; a must not delete b's lock.
	store.values["taxsync:lock:cron-worker:test"] = "someone-else"
	if err := a.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.values["taxsync:lock:cron-worker:test"]; !ok {
		t.Fatal("release removed a lock owned by another worker")
	}

	delete(store.values, "taxsync:lock:cron-worker:test")
	if err := a.Release(ctx); err != nil {
		t.Fatalf("Release after expiry: %v", err)
	}
}
