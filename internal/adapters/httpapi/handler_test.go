package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"social-tracker/internal/domain"
	"social-tracker/internal/usecase/ingest"
)

type postsStub struct {
	posts    []domain.Post
	platform domain.Platform
	brand    string
	err      error
}

func (s *postsStub) Posts(_ context.Context, platform domain.Platform, brand string) ([]domain.Post, error) {
	s.platform, s.brand = platform, brand
	return s.posts, s.err
}

func (s *postsStub) MonthlyStats(_ context.Context, platform domain.Platform) ([]domain.MonthlyStat, error) {
	s.platform = platform
	return []domain.MonthlyStat{{Platform: domain.PlatformFacebook, Brand: "prins", Month: "2026-02", TotalPosts: 2}}, s.err
}

type importerStub struct {
	filename string
	body     string
	brand    string
	labels   [3]string
	err      error
}

func (s *importerStub) ImportCSV(_ context.Context, filename string, r io.Reader, brand string) (ingest.ImportResult, error) {
	data, _ := io.ReadAll(r)
	s.filename, s.body, s.brand = filename, string(data), brand
	return ingest.ImportResult{Filename: filename, Platform: domain.PlatformFacebook, Result: domain.BatchResult{Inserted: 2}, Message: "2 new posts inserted"}, s.err
}

func (s *importerStub) UpdatePostLabels(_ context.Context, id int64, theme, campaign string) error {
	if id == 404 {
		return domain.ErrNotFound
	}
	s.labels = [3]string{string(rune('0' + id)), theme, campaign}
	return s.err
}

func (s *importerStub) ListUploads(context.Context) ([]domain.UploadRecord, error) {
	return []domain.UploadRecord{{ID: 1, Filename: "a.csv", Platform: domain.PlatformFacebook, Brand: "prins", PostCount: 2}}, s.err
}

type ledgerStub struct {
	counts   map[string]int64
	recorded []domain.FollowerSnapshot
}

func (l *ledgerStub) Record(_ context.Context, platform domain.Platform, brand string, followers int64, month string) error {
	if followers < 0 {
		return domain.ErrInvalidInput
	}
	l.recorded = append(l.recorded, domain.FollowerSnapshot{Platform: platform, Brand: brand, Month: month, Followers: followers})
	return nil
}

func (l *ledgerStub) Lookup(_ context.Context, platform domain.Platform, brand, month string) (int64, bool, error) {
	n, ok := l.counts[string(platform)+"/"+brand+"/"+month]
	return n, ok, nil
}

func (l *ledgerStub) LookupPreviousMonth(_ context.Context, platform domain.Platform, brand string) (domain.FollowerSnapshot, bool, error) {
	return domain.FollowerSnapshot{Platform: platform, Brand: brand, Month: "2025-12", Followers: 900}, true, nil
}

func (l *ledgerStub) History(_ context.Context, platform domain.Platform, brand string) ([]domain.FollowerSnapshot, error) {
	return []domain.FollowerSnapshot{{Platform: platform, Brand: brand, Month: "2025-12", Followers: 900}}, nil
}

type remarksStub struct {
	remarks []domain.Remark
}

func (s *remarksStub) AddRemark(_ context.Context, author, message string) (domain.Remark, error) {
	r := domain.Remark{ID: int64(len(s.remarks) + 1), Author: author, Message: message, Status: domain.RemarkOpen}
	s.remarks = append(s.remarks, r)
	return r, nil
}

func (s *remarksStub) ListRemarks(context.Context) ([]domain.Remark, error) {
	return s.remarks, nil
}

func (s *remarksStub) UpdateRemarkStatus(_ context.Context, id int64, status domain.RemarkStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	for i := range s.remarks {
		if s.remarks[i].ID == id {
			s.remarks[i].Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

type reportsStub struct{}

func (reportsStub) Get(_ context.Context, month, platform, brand string) (domain.Report, error) {
	if month == "2026-02" {
		return domain.Report{Month: month, Platform: "cross", Brand: brand, Content: "ok"}, nil
	}
	return domain.Report{}, domain.ErrNotFound
}

type queueStub struct {
	jobs []domain.SyncJob
}

func (q *queueStub) Enqueue(_ context.Context, job domain.SyncJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) Receive(context.Context) (domain.SyncJob, domain.AckFunc, error) {
	return domain.SyncJob{}, nil, context.Canceled
}

type brandSet map[string]bool

func (b brandSet) Has(name string) bool { return b[name] }

type fixture struct {
	router   chi.Router
	posts    *postsStub
	importer *importerStub
	ledger   *ledgerStub
	remarks  *remarksStub
	queue    *queueStub
}

func newFixture() *fixture {
	f := &fixture{
		posts:    &postsStub{},
		importer: &importerStub{},
		ledger:   &ledgerStub{counts: map[string]int64{"instagram/prins/2026-01": 1200}},
		remarks:  &remarksStub{},
		queue:    &queueStub{},
	}
	h := NewHandler(Deps{
		Posts:     f.posts,
		Importer:  f.importer,
		Followers: f.ledger,
		Remarks:   f.remarks,
		Reports:   reportsStub{},
		Queue:     f.queue,
		Brands:    brandSet{"prins": true, "edupet": true},
	}, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC) }
	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := newFixture().do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListPosts(t *testing.T) {
	f := newFixture()
	f.posts.posts = []domain.Post{{ID: 1, Platform: domain.PlatformFacebook, Brand: "prins", Text: "hi"}}

	rec := f.do(t, http.MethodGet, "/api/v1/posts?platform=Facebook&brand=prins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.PlatformFacebook, f.posts.platform)
	require.Equal(t, "prins", f.posts.brand)

	var got []domain.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/posts?platform=myspace", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "storage", err: domain.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
		{name: "not found", err: domain.ErrNotFound, want: http.StatusNotFound},
		{name: "other", err: io.ErrUnexpectedEOF, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.posts.err = tt.err
			rec := f.do(t, http.MethodGet, "/api/v1/stats/monthly", "")
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUpdateLabels(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPatch, "/api/v1/posts/7/labels", `{"theme":"winter","campaign":"promo"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, [3]string{"7", "winter", "promo"}, f.importer.labels)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/v1/posts/404/labels", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/posts/abc/labels", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/posts/7/labels", `{"colour":"red"}`).Code)
}

func TestFollowersEndpoints(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/followers/instagram/prins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"platform":"instagram","brand":"prins","month":"2026-01","followers":1200}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/followers/instagram/prins?month=2025-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"platform":"instagram","brand":"prins","month":"2025-06","followers":null}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/followers/instagram/prins/previous", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"platform":"instagram","brand":"prins","month":"2025-12","followers":900}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/followers/instagram/prins/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/followers/facebook/prins", `{"followers":1500,"month":"2026-01"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, f.ledger.recorded, 1)
	require.Equal(t, int64(1500), f.ledger.recorded[0].Followers)

	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/v1/followers/facebook/prins", `{"month":"2026-01"}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/v1/followers/facebook/prins", `{"followers":-1}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/followers/myspace/prins", "").Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/followers/facebook/prins?month=2026", "").Code)
}

func TestUploadCSV(t *testing.T) {
	f := newFixture()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "../exports/facebook_feb.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Publish time,Title\n02/10/2026 08:30,Prins winter\n"))
	require.NoError(t, mw.WriteField("brand", "prins"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "facebook_feb.csv", f.importer.filename)
	require.Equal(t, "prins", f.importer.brand)
	require.Contains(t, f.importer.body, "Prins winter")

	var res ingest.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 2, res.Result.Inserted)

	rec = f.do(t, http.MethodGet, "/api/v1/uploads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"filename":"a.csv"`)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	f := newFixture()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("brand", "prins"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemarks(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/remarks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/remarks", `{"author":"anna","message":"  reach looks off  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "reach looks off", f.remarks.remarks[0].Message)

	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/remarks", `{"message":"  "}`).Code)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPatch, "/api/v1/remarks/1", `{"status":"done"}`).Code)
	require.Equal(t, domain.RemarkDone, f.remarks.remarks[0].Status)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/v1/remarks/1", `{"status":"archived"}`).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/v1/remarks/9", `{"status":"done"}`).Code)
}

func TestReports(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/reports/2026-02?brand=prins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"content":"ok"`)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/reports/2026-03", "").Code)
}

func TestEnqueueSync(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/sync", `{"kind":"history","brand":"prins","since_year":2024}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	require.NotEmpty(t, job.ID)
	require.Equal(t, domain.SyncHistory, job.Kind)
	require.Equal(t, 2024, job.SinceYear)
	require.Equal(t, domain.SyncCauseManual, job.Cause)
	require.Contains(t, rec.Body.String(), job.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/sync", `{"kind":"report","month":"2026-01"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	bad := []string{
		`{"kind":"everything","brand":"prins"}`,
		`{"kind":"posts"}`,
		`{"kind":"posts","brand":"whiskas"}`,
		`{"kind":"report","month":"jan"}`,
		`{"kind":"posts","brand":"prins","platform":"myspace"}`,
	}
	for _, body := range bad {
		require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/sync", body).Code, body)
	}
	require.Len(t, f.queue.jobs, 2)
}
