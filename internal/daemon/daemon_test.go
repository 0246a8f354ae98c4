package daemon_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"discripper/internal/config"
	"discripper/internal/daemon"
	"discripper/internal/disc"
	"discripper/internal/drives"
	"discripper/internal/logging"
	"discripper/internal/store"
	"discripper/internal/testsupport"
)

type fakeSpawner struct {
	mu   sync.Mutex
	jobs []int64
	err  error
}

func (s *fakeSpawner) Spawn(_ context.Context, jobID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.jobs = append(s.jobs, jobID)
	return 4000 + int(jobID), nil
}

func (s *fakeSpawner) spawned() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.jobs...)
}

type daemonFixture struct {
	cfg     *config.Config
	st      *store.Store
	ctl     *testsupport.FakeController
	spawner *fakeSpawner
	alive   map[int]bool
}

func newDaemonFixture(t *testing.T) *daemonFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	ctl := testsupport.NewFakeController(t.TempDir())
	ctl.Tray = disc.TrayNoDisc
	return &daemonFixture{
		cfg:     cfg,
		st:      testsupport.MustOpenStore(t, cfg),
		ctl:     ctl,
		spawner: &fakeSpawner{},
		alive:   map[int]bool{},
	}
}

func (f *daemonFixture) build(t *testing.T) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(f.cfg, daemon.Deps{
		Store:      f.st,
		Controller: f.ctl,
		Spawner:    f.spawner,
		Enumerator: func(context.Context) ([]string, error) { return []string{"/dev/sr0"}, nil },
		Alive:      func(pid int, _ int64) bool { return f.alive[pid] },
		// Netlink sockets are unavailable in most sandboxes.
		DisableNetlink: true,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDaemonStartStopAndSingleInstance(t *testing.T) {
	f := newDaemonFixture(t)
	d := f.build(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.MonitorRunning || status.Drives != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := f.build(t)
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second instance Start err = %v, want lock refusal", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestDiscPresentAtStartupSpawnsJob(t *testing.T) {
	f := newDaemonFixture(t)
	f.ctl.Tray = disc.TrayDiscOK
	d := f.build(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	spawned := f.spawner.spawned()
	if len(spawned) != 1 {
		t.Fatalf("spawned %v, want one job", spawned)
	}
	job, err := f.st.MustGetJob(ctx, spawned[0])
	if err != nil {
		t.Fatalf("MustGetJob: %v", err)
	}
	if job.DevPath != "/dev/sr0" || job.Status != store.StatusNew || job.DriveID == 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
	drive, err := f.st.GetDrive(ctx, job.DriveID)
	if err != nil {
		t.Fatalf("GetDrive: %v", err)
	}
	if drive.JobIDCurrent == nil || *drive.JobIDCurrent != job.ID {
		t.Fatalf("drive current job = %v, want %d", drive.JobIDCurrent, job.ID)
	}

	if err := d.HandleLoaded(ctx, "/dev/sr0"); err != nil {
		t.Fatalf("HandleLoaded: %v", err)
	}
	if got := f.spawner.spawned(); len(got) != 1 {
		t.Fatalf("second event spawned %v, want no new job", got)
	}
}

func TestDiscInUnregisteredDriveRegistersDrive(t *testing.T) {
	f := newDaemonFixture(t)
	d := f.build(t)
	ctx := context.Background()
	if list, err := f.st.ListDrives(ctx); err != nil || len(list) != 0 {
		t.Fatalf("ListDrives = %v, %v; want empty registry", list, err)
	}

	if err := d.HandleLoaded(ctx, "/dev/sr0"); err != nil {
		t.Fatalf("HandleLoaded: %v", err)
	}
	spawned := f.spawner.spawned()
	if len(spawned) != 1 {
		t.Fatalf("spawned %v, want one job", spawned)
	}
	job, err := f.st.MustGetJob(ctx, spawned[0])
	if err != nil {
		t.Fatalf("MustGetJob: %v", err)
	}
	if job.DriveID == 0 {
		t.Fatal("job not linked to the rescanned drive")
	}
	drive, err := f.st.GetDrive(ctx, job.DriveID)
	if err != nil {
		t.Fatalf("GetDrive: %v", err)
	}
	if drive.JobIDCurrent == nil || *drive.JobIDCurrent != job.ID {
		t.Fatalf("drive current job = %v, want %d", drive.JobIDCurrent, job.ID)
	}
}

func TestManualDriveIgnoresDiscs(t *testing.T) {
	f := newDaemonFixture(t)
	d := f.build(t)
	ctx := context.Background()
	if _, err := d.Registry().Refresh(ctx, drives.SyncOptions{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	list, err := d.Registry().List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if err := d.Registry().Update(ctx, list[0].ID, "Attic", "", store.DriveModeManual); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := d.HandleLoaded(ctx, "/dev/sr0"); err != nil {
		t.Fatalf("HandleLoaded: %v", err)
	}
	if got := f.spawner.spawned(); len(got) != 0 {
		t.Fatalf("manual drive spawned %v", got)
	}
}

func TestSpawnFailureFailsJob(t *testing.T) {
	f := newDaemonFixture(t)
	f.spawner.err = errors.New("exec format error")
	d := f.build(t)
	ctx := context.Background()

	if err := d.HandleLoaded(ctx, "/dev/sr0"); err == nil {
		t.Fatal("expected spawn error")
	}
	list, err := f.st.ListJobs(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListJobs = %v, %v", list, err)
	}
	if list[0].Status != store.StatusFail || !strings.Contains(list[0].Errors, "exec format error") {
		t.Fatalf("unexpected job after spawn failure: %+v", list[0])
	}
	drive, err := f.st.GetDrive(ctx, list[0].DriveID)
	if err != nil {
		t.Fatalf("GetDrive: %v", err)
	}
	if drive.Busy() {
		t.Fatal("drive still held by the failed job")
	}
}

func TestStartFailsOrphanedJobs(t *testing.T) {
	f := newDaemonFixture(t)
	ctx := context.Background()

	orphan := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr1")
	testsupport.AdvanceJob(t, f.st, orphan.ID, store.EventIdentify, store.EventRip)
	orphan.PID, orphan.PIDHash = 111, 7
	if err := f.st.UpdateJob(ctx, orphan); err != nil {
		t.Fatal(err)
	}
	running := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr2")
	testsupport.AdvanceJob(t, f.st, running.ID, store.EventIdentify)
	running.PID, running.PIDHash = 222, 9
	if err := f.st.UpdateJob(ctx, running); err != nil {
		t.Fatal(err)
	}
	f.alive[222] = true

	d := f.build(t)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := f.st.MustGetJob(ctx, orphan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusFail || !strings.Contains(got.Errors, "no longer running") {
		t.Fatalf("orphan not failed: %+v", got)
	}
	got, err = f.st.MustGetJob(ctx, running.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusIdentifying {
		t.Fatalf("live job status = %s, want identifying", got.Status)
	}
}
