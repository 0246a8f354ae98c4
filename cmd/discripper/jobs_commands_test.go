package main

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"discripper/internal/api"
	"discripper/internal/store"
	"discripper/internal/testsupport"
)

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	done := env.finishedSeriesJob(t, "FRIENDS_S1D1", "Friends", "Friends S1D1")
	running := testsupport.NewJob(t, env.store, env.cfg, "/dev/sr1")
	testsupport.AdvanceJob(t, env.store, running.ID, store.EventIdentify)

	out, err := env.run(t, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "Friends (1994)")
	requireContains(t, out, "identifying")

	out, err = env.run(t, "jobs", "list", "--active", "--json")
	if err != nil {
		t.Fatalf("jobs list --active: %v", err)
	}
	var list api.JobListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != running.ID {
		t.Fatalf("active jobs = %+v, want only %d", list.Jobs, running.ID)
	}

	out, err = env.run(t, "jobs", "show", strconv.FormatInt(done.ID, 10))
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "success")
	requireContains(t, out, "FRIENDS_S1D1")

	if _, err := env.run(t, "jobs", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, err := env.run(t, "jobs", "show", "abc"); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
}

func TestJobsTitleAbandonAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	job := testsupport.NewJob(t, env.store, env.cfg, "/dev/sr0")
	id := strconv.FormatInt(job.ID, 10)

	out, err := env.run(t, "jobs", "title", id, "--title", "Heat", "--year", "1995", "--type", "Movie")
	if err != nil {
		t.Fatalf("jobs title: %v", err)
	}
	requireContains(t, out, "Heat (1995)")
	got, err := env.store.MustGetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TitleManual != "Heat" || got.VideoType != store.VideoMovie {
		t.Fatalf("correction not stored: %+v", got)
	}

	if _, err := env.run(t, "jobs", "abandon", id); err != nil {
		t.Fatalf("jobs abandon: %v", err)
	}
	got, err = env.store.MustGetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusFail {
		t.Fatalf("abandoned status = %s, want fail", got.Status)
	}

	if _, err := env.run(t, "jobs", "delete", id); err != nil {
		t.Fatalf("jobs delete: %v", err)
	}
	if _, err := env.store.MustGetJob(ctx, job.ID); err == nil {
		t.Fatal("expected job to be gone")
	}
}

func TestJobsConfigPrintsSnapshot(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.store, env.cfg, "/dev/sr0")

	out, err := env.run(t, "jobs", "config", strconv.FormatInt(job.ID, 10))
	if err != nil {
		t.Fatalf("jobs config: %v", err)
	}
	requireContains(t, out, "[ripper]")
	if !strings.Contains(out, "rip_method") {
		t.Fatalf("snapshot missing ripper settings:\n%s", out)
	}
}
