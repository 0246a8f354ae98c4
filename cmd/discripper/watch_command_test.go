package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"discripper/internal/store"
	"discripper/internal/testsupport"
)

func TestWatchOncePrintsBoard(t *testing.T) {
	env := setupCLITestEnv(t)
	env.finishedSeriesJob(t, "FRIENDS_S1D1", "Friends", "Friends S1D1")
	if _, err := env.run(t, "drives", "scan"); err != nil {
		t.Fatalf("drives scan: %v", err)
	}

	out, err := env.run(t, "watch", "--once")
	if err != nil {
		t.Fatalf("watch --once: %v", err)
	}
	requireContains(t, out, "Drives")
	requireContains(t, out, "/dev/sr0")
	requireContains(t, out, "Friends (1994)")
}

func TestStoreLoaderLimitsFinishedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	for range 3 {
		job := testsupport.NewJob(t, env.store, env.cfg, "/dev/sr0")
		testsupport.AdvanceJob(t, env.store, job.ID, store.EventFail)
	}
	active := testsupport.NewJob(t, env.store, env.cfg, "/dev/sr1")

	snap, err := storeLoader(env.store, 1)(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.jobs) != 2 {
		t.Fatalf("jobs = %d, want active plus one finished", len(snap.jobs))
	}
	found := false
	for _, job := range snap.jobs {
		if job.ID == active.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("active job missing from board")
	}
}

func TestWatchModelUpdate(t *testing.T) {
	calls := 0
	m := watchModel{
		interval: time.Second,
		load: func(context.Context) (boardSnapshot, error) {
			calls++
			return boardSnapshot{at: time.Now()}, nil
		},
	}

	if msg := m.Init()(); msg == nil {
		t.Fatal("expected Init to load a snapshot")
	}
	if calls != 1 {
		t.Fatalf("loader calls = %d, want 1", calls)
	}

	next, cmd := m.Update(snapshotMsg{err: errors.New("database is locked")})
	if cmd == nil {
		t.Fatal("expected a tick to be scheduled after a snapshot")
	}
	if view := next.View(); !strings.Contains(view, "database is locked") {
		t.Fatalf("view does not show refresh error:\n%s", view)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Friends", 10); got != "Friends" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("The Lord of the Rings", 8); got != "The Lor…" {
		t.Fatalf("truncate long = %q", got)
	}
}
