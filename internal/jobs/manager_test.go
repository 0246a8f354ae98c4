package jobs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/store"
	"discripper/internal/testsupport"
)

type fakeKiller struct {
	calls []int
	err   error
}

func (k *fakeKiller) Kill(pid int, _ int64) error {
	k.calls = append(k.calls, pid)
	return k.err
}

func newManager(t *testing.T, killer jobs.Killer, opts ...testsupport.ConfigOption) (*jobs.Manager, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := jobs.NewManager(cfg, st, killer, logging.NewNop(),
		jobs.WithManualPollInterval(5*time.Millisecond),
		jobs.WithLockRetryInterval(time.Millisecond),
	)
	return mgr, st, cfg
}

func insertDrive(t *testing.T, st *store.Store, mount string) *store.Drive {
	t.Helper()
	ctx := context.Background()
	id, err := st.InsertDrive(ctx, &store.Drive{Name: "Drive 1", Mount: mount, SerialID: "PIONEER_BDR_1"})
	if err != nil {
		t.Fatalf("InsertDrive: %v", err)
	}
	drive, err := st.GetDrive(ctx, id)
	if err != nil {
		t.Fatalf("GetDrive: %v", err)
	}
	return drive
}

func TestCreateAcquiresDriveAndCompleteReleases(t *testing.T) {
	mgr, st, _ := newManager(t, nil)
	ctx := context.Background()
	drive := insertDrive(t, st, "/dev/sr0")

	job, err := mgr.Create(ctx, drive, "sr0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.DevPath != "/dev/sr0" || job.MountPoint != "/mnt/dev/sr0" || job.Status != store.StatusNew {
		t.Fatalf("unexpected job: %+v", job)
	}
	held, err := st.GetDrive(ctx, drive.ID)
	if err != nil {
		t.Fatalf("GetDrive: %v", err)
	}
	if held.JobIDCurrent == nil || *held.JobIDCurrent != job.ID {
		t.Fatalf("drive current = %v, want %d", held.JobIDCurrent, job.ID)
	}

	testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify, store.EventRip, store.EventActivate)
	done, err := mgr.Complete(ctx, job.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != store.StatusSuccess || done.StopTime.IsZero() {
		t.Fatalf("unexpected completed job: %+v", done)
	}
	released, _ := st.GetDrive(ctx, drive.ID)
	if released.JobIDCurrent != nil || released.JobIDPrevious == nil || *released.JobIDPrevious != job.ID {
		t.Fatalf("drive not released: current=%v previous=%v", released.JobIDCurrent, released.JobIDPrevious)
	}
}

func TestAbandonToleratesMissingProcess(t *testing.T) {
	killer := &fakeKiller{err: disc.ErrProcessGone}
	mgr, st, _ := newManager(t, killer)
	ctx := context.Background()
	drive := insertDrive(t, st, "/dev/sr0")

	job, err := mgr.Create(ctx, drive, "/dev/sr0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify, store.EventRip)
	job.PID = 4242
	if err := st.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	abandoned, err := mgr.Abandon(ctx, job.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != store.StatusFail {
		t.Fatalf("status = %s, want fail", abandoned.Status)
	}
	if !strings.Contains(abandoned.Errors, "abandoned") {
		t.Fatalf("errors = %q", abandoned.Errors)
	}
	if len(killer.calls) != 1 || killer.calls[0] != 4242 {
		t.Fatalf("kill calls = %v", killer.calls)
	}
	released, _ := st.GetDrive(ctx, drive.ID)
	if released.JobIDCurrent != nil {
		t.Fatalf("drive still held by %d", *released.JobIDCurrent)
	}
}

func TestAbandonFinishedJob(t *testing.T) {
	mgr, st, _ := newManager(t, &fakeKiller{})
	ctx := context.Background()
	job, err := mgr.Create(ctx, nil, "/dev/sr1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify, store.EventRip, store.EventActivate, store.EventComplete)

	abandoned, err := mgr.Abandon(ctx, job.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if abandoned.Status != store.StatusFail {
		t.Fatalf("status = %s, want fail", abandoned.Status)
	}
}

func TestFailTerminalJobOnlyRecordsError(t *testing.T) {
	mgr, st, _ := newManager(t, nil)
	ctx := context.Background()
	job, err := mgr.Create(ctx, nil, "/dev/sr0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify, store.EventRip, store.EventActivate, store.EventComplete)

	got, err := mgr.Fail(ctx, job.ID, errors.New("late failure"))
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got.Status != store.StatusSuccess || got.Errors != "late failure" {
		t.Fatalf("unexpected job: status=%s errors=%q", got.Status, got.Errors)
	}
}

func TestUpdateTitleKeepsAutomaticGuess(t *testing.T) {
	mgr, st, _ := newManager(t, nil)
	ctx := context.Background()
	job, err := mgr.Create(ctx, nil, "/dev/sr0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := st.SetAutoIdentity(ctx, job.ID, store.Identity{
		DiscType: store.DiscDVD, Label: "MATRIX", Title: "The Matrix", Year: "1999", VideoType: store.VideoMovie, HasNiceTitle: true,
	}); err != nil {
		t.Fatalf("SetAutoIdentity: %v", err)
	}

	updated, err := mgr.UpdateTitle(ctx, job.ID, store.Correction{Title: " The Matrix Reloaded ", Year: "2003"})
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if updated.Title != "The Matrix Reloaded" || updated.TitleManual != "The Matrix Reloaded" || updated.Year != "2003" {
		t.Fatalf("correction not applied: %+v", updated)
	}
	if updated.TitleAuto != "The Matrix" || updated.YearAuto != "1999" {
		t.Fatalf("automatic fields changed: title_auto=%q year_auto=%q", updated.TitleAuto, updated.YearAuto)
	}

	if _, err := mgr.UpdateTitle(ctx, job.ID, store.Correction{VideoType: "cartoon"}); err == nil {
		t.Fatal("expected invalid video type error")
	}
	if _, err := mgr.UpdateTitle(ctx, job.ID, store.Correction{}); err == nil {
		t.Fatal("expected empty correction error")
	}
}

func TestCommitMetadataRetriesWhileLocked(t *testing.T) {
	mgr, _, cfg := newManager(t, nil)
	cfg.Workflow.DBLockRetrySeconds = 5
	ctx := context.Background()
	job, err := mgr.Create(ctx, nil, "/dev/sr0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	calls := 0
	err = mgr.CommitMetadata(ctx, job.ID, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CommitMetadata: %v", err)
	}
	if calls != 3 {
		t.Fatalf("apply calls = %d, want 3", calls)
	}
}

func TestCommitMetadataForceFails(t *testing.T) {
	tests := []struct {
		name     string
		applyErr error
		wantLock bool
	}{
		{name: "lock window exhausted", applyErr: errors.New("database is locked"), wantLock: true},
		{name: "other error", applyErr: errors.New("constraint failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, st, cfg := newManager(t, nil)
			cfg.Workflow.DBLockRetrySeconds = 0
			ctx := context.Background()
			job, err := mgr.Create(ctx, nil, "/dev/sr0")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			err = mgr.CommitMetadata(ctx, job.ID, func(context.Context) error { return tt.applyErr })
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, jobs.ErrLockTimeout) != tt.wantLock {
				t.Fatalf("ErrLockTimeout match = %v, want %v (%v)", !tt.wantLock, tt.wantLock, err)
			}
			failed, _ := st.MustGetJob(ctx, job.ID)
			if failed.Status != store.StatusFail {
				t.Fatalf("status = %s, want fail", failed.Status)
			}
		})
	}
}

func TestWaitForManualTitle(t *testing.T) {
	t.Run("disabled returns immediately", func(t *testing.T) {
		mgr, st, _ := newManager(t, nil)
		ctx := context.Background()
		job, _ := mgr.Create(ctx, nil, "/dev/sr0")
		testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify)

		got, err := mgr.WaitForManualTitle(ctx, job.ID)
		if err != nil {
			t.Fatalf("WaitForManualTitle: %v", err)
		}
		if got.Status != store.StatusIdentifying {
			t.Fatalf("status = %s", got.Status)
		}
	})

	t.Run("correction ends wait early", func(t *testing.T) {
		mgr, st, _ := newManager(t, nil, testsupport.WithRipper(func(r *config.Ripper) {
			r.ManualWait = true
			r.ManualWaitTime = 60
		}))
		ctx := context.Background()
		job, _ := mgr.Create(ctx, nil, "/dev/sr0")
		testsupport.AdvanceJob(t, st, job.ID, store.EventIdentify)
		if err := st.ApplyCorrection(ctx, job.ID, store.Correction{Title: "Alien"}); err != nil {
			t.Fatalf("ApplyCorrection: %v", err)
		}

		start := time.Now()
		got, err := mgr.WaitForManualTitle(ctx, job.ID)
		if err != nil {
			t.Fatalf("WaitForManualTitle: %v", err)
		}
		if got.Status != store.StatusIdentifying || got.Title != "Alien" {
			t.Fatalf("unexpected job: status=%s title=%q", got.Status, got.Title)
		}
		if time.Since(start) > 5*time.Second {
			t.Fatal("wait did not end early")
		}
	})
}
