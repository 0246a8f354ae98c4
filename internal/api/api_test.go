package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"discripper/internal/api"
	"discripper/internal/config"
	"discripper/internal/drives"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/rename"
	"discripper/internal/store"
	"discripper/internal/testsupport"
)

type apiFixture struct {
	t       *testing.T
	cfg     *config.Config
	st      *store.Store
	ctl     *testsupport.FakeController
	handler http.Handler
}

func newAPIFixture(t *testing.T, token string) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Token = token
	st := testsupport.MustOpenStore(t, cfg)
	ctl := testsupport.NewFakeController(t.TempDir())
	logger := logging.NewNop()

	manager := jobs.NewManager(cfg, st, ctl, logger)
	registry := drives.NewRegistry(st, ctl, logger, drives.WithEnumerator(func(context.Context) ([]string, error) {
		return []string{"/dev/sr0"}, nil
	}))
	renamer := rename.New(cfg, st, nil, logger, rename.WithBatchIDs(func() string { return "batch-1" }))
	srv := api.New(cfg, manager, registry, renamer, logger)
	return &apiFixture{t: t, cfg: cfg, st: st, ctl: ctl, handler: srv.Handler()}
}

func (f *apiFixture) do(method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// finishedSeriesJob records a completed series disc stored under
// completed/tv/<folder>.
func (f *apiFixture) finishedSeriesJob(label, title, folder string) *store.Job {
	f.t.Helper()
	return testsupport.FinishedSeriesJob(f.t, f.st, f.cfg, testsupport.SeriesRip{Label: label, Title: title, Folder: folder})
}

func TestBearerTokenRequired(t *testing.T) {
	f := newAPIFixture(t, "s3cret")

	if w := f.do(http.MethodGet, "/api/jobs", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/jobs", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d, want 401", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/jobs", nil, map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("valid token: status %d, want 200", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("health: status %d, want 200", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newAPIFixture(t, "")

	w := f.do(http.MethodGet, "/api/health", nil, map[string]string{"X-Request-ID": "abc"})
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("X-Request-ID = %q, want abc", got)
	}
	w = f.do(http.MethodGet, "/api/health", nil, nil)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("generated X-Request-ID = %q, want a uuid", got)
	}
}

func TestJobListAndDetail(t *testing.T) {
	f := newAPIFixture(t, "")
	job := f.finishedSeriesJob("FRIENDS_S1D1", "Friends", "Friends S1D1")
	ctx := context.Background()
	if _, err := f.st.AddTrack(ctx, &store.Track{JobID: job.ID, TrackNumber: "0", Length: 1320, Filename: "title_01.mkv", Status: store.TrackSuccess, Ripped: true}); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if err := f.st.AppendJobError(ctx, job.ID, "first"); err != nil {
		t.Fatal(err)
	}
	if err := f.st.AppendJobError(ctx, job.ID, "second"); err != nil {
		t.Fatal(err)
	}

	list := decode[api.JobListResponse](t, f.do(http.MethodGet, "/api/jobs?status=success", nil, nil))
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID || list.Jobs[0].Status != "success" {
		t.Fatalf("unexpected list: %+v", list)
	}
	empty := decode[api.JobListResponse](t, f.do(http.MethodGet, "/api/jobs?status=ripping", nil, nil))
	if len(empty.Jobs) != 0 {
		t.Fatalf("ripping filter returned %d jobs", len(empty.Jobs))
	}

	w := f.do(http.MethodGet, "/api/jobs/"+itoa(job.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	detail := decode[api.JobResponse](t, w)
	if detail.Job.Title != "Friends" || detail.Job.VideoType != "series" {
		t.Fatalf("unexpected job: %+v", detail.Job)
	}
	if len(detail.Job.Tracks) != 1 || detail.Job.Tracks[0].Filename != "title_01.mkv" {
		t.Fatalf("unexpected tracks: %+v", detail.Job.Tracks)
	}
	if strings.Join(detail.Job.Errors, "|") != "first|second" {
		t.Fatalf("errors = %v", detail.Job.Errors)
	}
}

func TestJobErrorsMapToStatusCodes(t *testing.T) {
	f := newAPIFixture(t, "")

	if w := f.do(http.MethodGet, "/api/jobs/999", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing job: status %d, want 404", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/jobs/abc", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d, want 400", w.Code)
	}
	job := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr0")
	w := f.do(http.MethodPatch, "/api/jobs/"+itoa(job.ID)+"/title", map[string]string{"video_type": "opera"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad video type: status %d, want 400", w.Code)
	}
	resp := decode[api.ErrorResponse](t, w)
	if resp.Success || !strings.Contains(resp.Error, "opera") {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestTitleCorrectionAbandonAndDelete(t *testing.T) {
	f := newAPIFixture(t, "")
	job := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr0")
	id := itoa(job.ID)

	w := f.do(http.MethodPatch, "/api/jobs/"+id+"/title", map[string]string{"title": " Alien ", "year": "1979", "video_type": "Movie"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("title: status %d: %s", w.Code, w.Body.String())
	}
	corrected := decode[api.JobResponse](t, w)
	if corrected.Job.Title != "Alien" || corrected.Job.TitleManual != "Alien" || corrected.Job.Year != "1979" {
		t.Fatalf("unexpected correction: %+v", corrected.Job)
	}

	w = f.do(http.MethodPost, "/api/jobs/"+id+"/abandon", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("abandon: status %d: %s", w.Code, w.Body.String())
	}
	abandoned := decode[api.JobResponse](t, w)
	if abandoned.Job.Status != "fail" || len(abandoned.Job.Errors) == 0 {
		t.Fatalf("unexpected abandoned job: %+v", abandoned.Job)
	}

	if w := f.do(http.MethodDelete, "/api/jobs/"+id, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/api/jobs/"+id, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted job: status %d, want 404", w.Code)
	}
}

func TestDriveScanListAndEject(t *testing.T) {
	f := newAPIFixture(t, "")

	w := f.do(http.MethodPost, "/api/drives/scan", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scan: status %d: %s", w.Code, w.Body.String())
	}
	scan := decode[api.ScanResponse](t, w)
	if scan.Created != 1 || len(scan.Drives) != 1 || scan.Drives[0].Mount != "/dev/sr0" {
		t.Fatalf("unexpected scan: %+v", scan)
	}
	id := itoa(scan.Drives[0].ID)

	if w := f.do(http.MethodPost, "/api/drives/"+id+"/eject?method=spin", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad method: status %d, want 400", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/drives/"+id+"/eject", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("eject: status %d: %s", w.Code, w.Body.String())
	}
	if f.ctl.EjectCount() != 1 {
		t.Fatalf("eject count = %d, want 1", f.ctl.EjectCount())
	}
	if w := f.do(http.MethodPost, "/api/drives/42/eject", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing drive: status %d, want 404", w.Code)
	}
}

func TestRenamePreviewExecuteRollback(t *testing.T) {
	f := newAPIFixture(t, "")
	a := f.finishedSeriesJob("FRIENDS_S1D1", "Friends", "Friends disc one")
	b := f.finishedSeriesJob("FRIENDS_S1D2", "Friends", "Friends disc two")
	body := map[string]any{"job_ids": []int64{a.ID, b.ID}, "naming_style": "dash", "user": "sam"}

	w := f.do(http.MethodPost, "/api/rename/preview", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: status %d: %s", w.Code, w.Body.String())
	}
	preview := decode[api.PreviewResponse](t, w)
	if !preview.Valid || len(preview.Items) != 2 || preview.Items[0].NewFolder != "friends-S1D1" {
		t.Fatalf("unexpected preview: %s", w.Body.String())
	}

	w = f.do(http.MethodPost, "/api/rename/execute", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("execute: status %d: %s", w.Code, w.Body.String())
	}
	result := decode[rename.ExecuteResult](t, w)
	if result.BatchID != "batch-1" || result.SuccessCount != 2 {
		t.Fatalf("unexpected execute result: %+v", result)
	}

	batches := decode[api.BatchListResponse](t, f.do(http.MethodGet, "/api/rename/batches", nil, nil))
	if len(batches.Batches) != 1 || !batches.Batches[0].Rollbackable || batches.Batches[0].RenamedBy != "sam" {
		t.Fatalf("unexpected batches: %+v", batches)
	}

	w = f.do(http.MethodPost, "/api/rename/rollback", map[string]string{"batch_id": "batch-1"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rollback: status %d: %s", w.Code, w.Body.String())
	}
	if rb := decode[rename.RollbackResult](t, w); rb.RolledBack != 2 {
		t.Fatalf("unexpected rollback: %+v", rb)
	}
	if w := f.do(http.MethodPost, "/api/rename/rollback", map[string]string{"batch_id": "batch-1"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second rollback: status %d, want 404", w.Code)
	}
}

func TestRenameRejectsUnfinishedJob(t *testing.T) {
	f := newAPIFixture(t, "")
	job := testsupport.NewJob(t, f.st, f.cfg, "/dev/sr0")

	w := f.do(http.MethodPost, "/api/rename/execute", map[string]any{"job_ids": []int64{job.ID}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400: %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPost, "/api/rename/preview", map[string]any{"job_ids": []int64{job.ID}, "naming_style": "camel"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad style: status %d, want 400", w.Code)
	}
}

func TestModeDispatch(t *testing.T) {
	f := newAPIFixture(t, "")
	a := f.finishedSeriesJob("FRIENDS_S1D1", "Friends", "Friends disc one")

	list := decode[api.JobListResponse](t, f.do(http.MethodGet, "/json?mode=joblist", nil, nil))
	if len(list.Jobs) != 1 {
		t.Fatalf("joblist returned %d jobs", len(list.Jobs))
	}
	job := decode[api.JobResponse](t, f.do(http.MethodGet, "/json?mode=getjob&job_id="+itoa(a.ID), nil, nil))
	if job.Job.ID != a.ID {
		t.Fatalf("getjob returned %+v", job.Job)
	}

	q := url.Values{"mode": {"batch_rename_preview"}, "job_ids": {itoa(a.ID)}, "zero_padded": {"true"}}
	preview := decode[api.PreviewResponse](t, f.do(http.MethodGet, "/json?"+q.Encode(), nil, nil))
	if len(preview.Items) != 1 || preview.Items[0].NewFolder != "Friends_S01D01" {
		t.Fatalf("unexpected preview: %+v", preview.Items)
	}

	for target, want := range map[string]int{
		"/json":                       http.StatusBadRequest,
		"/json?mode=explode":          http.StatusBadRequest,
		"/json?mode=getjob":           http.StatusBadRequest,
		"/json?mode=getjob&job_id=77": http.StatusNotFound,
		"/json?mode=recent_batches":   http.StatusOK,
		"/json?mode=drives":           http.StatusOK,
	} {
		if w := f.do(http.MethodGet, target, nil, nil); w.Code != want {
			t.Errorf("%s: status %d, want %d", target, w.Code, want)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
