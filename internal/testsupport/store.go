package testsupport

import (
	"context"
	"testing"
	"time"

	"discripper/internal/config"
	"discripper/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewJob creates a job on devpath with cfg's snapshot.
func NewJob(t testing.TB, st *store.Store, cfg *config.Config, devpath string) *store.Job {
	t.Helper()

	job, err := st.CreateJob(context.Background(), store.NewJob(devpath, time.Now()), cfg.Snapshot())
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}

// AdvanceJob applies events in order and fails the test on the first error.
func AdvanceJob(t testing.TB, st *store.Store, id int64, events ...store.Event) *store.Job {
	t.Helper()

	var job *store.Job
	for _, event := range events {
		var err error
		job, err = st.Transition(context.Background(), id, event, "")
		if err != nil {
			t.Fatalf("transition %s: %v", event, err)
		}
	}
	return job
}
