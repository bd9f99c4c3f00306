package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/db"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, Migrate(context.Background(), conn, DialectSQLite))
	return NewSQLite(conn)
}

func samplePost() domain.Post {
	return domain.Post{
		Platform:    domain.PlatformFacebook,
		Brand:       "prins",
		PublishedAt: "2026-03-05T10:00:00",
		ContentType: "Post",
		Text:        "Voerdag!",
		Reach:       100,
		Impressions: 150,
		Likes:       10,
		Comments:    2,
		Shares:      1,
		Engagement:  13,
		Source:      "csv",
	}
}

func TestUpsertPostMergesReachAndImpressions(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	inserted, err := s.UpsertPost(ctx, samplePost())
	require.NoError(t, err)
	require.True(t, inserted)

	again := samplePost()
	again.Reach = 0
	again.Impressions = 300
	again.Likes = 999
	inserted, err = s.UpsertPost(ctx, again)
	require.NoError(t, err)
	require.False(t, inserted, "повторный ключ не должен считаться вставкой")

	posts, err := s.ListPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.EqualValues(t, 100, posts[0].Reach, "нулевой reach не затирает прежний")
	require.EqualValues(t, 300, posts[0].Impressions)
	require.EqualValues(t, 10, posts[0].Likes, "прочие поля не меняются")
	require.False(t, posts[0].CreatedAt.IsZero())
}

func TestUpsertPostIsIdempotent(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.UpsertPost(ctx, samplePost())
		require.NoError(t, err)
	}
	other := samplePost()
	other.Brand = "edupet"
	_, err := s.UpsertPost(ctx, other)
	require.NoError(t, err)

	posts, err := s.ListPosts(ctx, domain.PostFilter{Brand: "prins"})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	all, err := s.ListPosts(ctx, domain.PostFilter{Platform: domain.PlatformFacebook, Month: "2026-03"})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMonthlyStats(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	p1 := samplePost()
	p2 := samplePost()
	p2.Text = "Tweede"
	p2.PublishedAt = "2026-03-20T08:00:00"
	p3 := samplePost()
	p3.Platform = domain.PlatformInstagram
	p3.PublishedAt = "2026-02-01T08:00:00"
	for _, p := range []domain.Post{p1, p2, p3} {
		_, err := s.UpsertPost(ctx, p)
		require.NoError(t, err)
	}

	stats, err := s.MonthlyStats(ctx, domain.PlatformFacebook)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, "2026-03", stats[0].Month)
	require.EqualValues(t, 2, stats[0].TotalPosts)
	require.EqualValues(t, 20, stats[0].TotalLikes)
	require.EqualValues(t, 26, stats[0].TotalEngagement)
	require.EqualValues(t, 200, stats[0].TotalReach)

	all, err := s.MonthlyStats(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "2026-03", all[0].Month, "свежие месяцы первыми")
}

func TestUpdatePostLabels(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	_, err := s.UpsertPost(ctx, samplePost())
	require.NoError(t, err)
	posts, err := s.ListPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)

	require.NoError(t, s.UpdatePostLabels(ctx, posts[0].ID, "voeding", "lente"))
	posts, err = s.ListPosts(ctx, domain.PostFilter{})
	require.NoError(t, err)
	require.Equal(t, "voeding", posts[0].Theme)
	require.Equal(t, "lente", posts[0].Campaign)

	err = s.UpdatePostLabels(ctx, 4242, "x", "y")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFollowerSnapshots(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	snaps := []domain.FollowerSnapshot{
		{Platform: domain.PlatformInstagram, Brand: "prins", Month: "2025-12", Followers: 900},
		{Platform: domain.PlatformInstagram, Brand: "prins", Month: "2026-02", Followers: 1000},
	}
	for _, snap := range snaps {
		require.NoError(t, s.UpsertFollowerSnapshot(ctx, snap))
	}
	require.NoError(t, s.UpsertFollowerSnapshot(ctx, domain.FollowerSnapshot{
		Platform: domain.PlatformInstagram, Brand: "prins", Month: "2026-02", Followers: 1100,
	}))

	n, ok, err := s.GetFollowerCount(ctx, domain.PlatformInstagram, "prins", "2026-02")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1100, n, "повторная запись заменяет значение")

	_, ok, err = s.GetFollowerCount(ctx, domain.PlatformInstagram, "prins", "2026-01")
	require.NoError(t, err)
	require.False(t, ok)

	prev, ok, err := s.GetFollowerBefore(ctx, domain.PlatformInstagram, "prins", "2026-02")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2025-12", prev.Month, "пропущенный месяц не мешает найти предыдущий")
	require.EqualValues(t, 900, prev.Followers)

	_, ok, err = s.GetFollowerBefore(ctx, domain.PlatformInstagram, "prins", "2025-12")
	require.NoError(t, err)
	require.False(t, ok)

	list, err := s.ListFollowerSnapshots(ctx, domain.PlatformInstagram, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	list, err = s.ListFollowerSnapshots(ctx, domain.PlatformFacebook, "")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFollowerHistoryOldestFirst(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	for _, month := range []string{"2025-11", "2026-01", "2025-12"} {
		require.NoError(t, s.UpsertFollowerSnapshot(ctx, domain.FollowerSnapshot{
			Platform: domain.PlatformFacebook, Brand: "prins", Month: month, Followers: 100,
		}))
	}

	list, err := s.ListFollowerSnapshots(ctx, domain.PlatformFacebook, "prins")
	require.NoError(t, err)
	months := make([]string, 0, len(list))
	for _, snap := range list {
		months = append(months, snap.Month)
	}
	require.Equal(t, []string{"2025-11", "2025-12", "2026-01"}, months)
}

func TestUploadsAndRemarks(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	rec, err := s.LogUpload(ctx, domain.UploadRecord{Filename: "ig.csv", Platform: domain.PlatformInstagram, Brand: "prins", PostCount: 4})
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	uploads, err := s.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	require.Equal(t, 4, uploads[0].PostCount)

	r, err := s.AddRemark(ctx, "anna", "grafiek klopt niet")
	require.NoError(t, err)
	require.Equal(t, domain.RemarkOpen, r.Status)
	require.NoError(t, s.UpdateRemarkStatus(ctx, r.ID, domain.RemarkDone))
	require.ErrorIs(t, s.UpdateRemarkStatus(ctx, r.ID, "later"), domain.ErrInvalidStatus)
	require.ErrorIs(t, s.UpdateRemarkStatus(ctx, r.ID+10, domain.RemarkDone), domain.ErrNotFound)

	remarks, err := s.ListRemarks(ctx)
	require.NoError(t, err)
	require.Len(t, remarks, 1)
	require.Equal(t, domain.RemarkDone, remarks[0].Status)
}

func TestReportsAndSyncJobs(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	_, err := s.GetReport(ctx, "2026-02", domain.ReportPlatformCross, "")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, s.SaveReport(ctx, domain.Report{Month: "2026-02", Platform: domain.ReportPlatformCross, Content: "v1"}))
	require.NoError(t, s.SaveReport(ctx, domain.Report{Month: "2026-02", Platform: domain.ReportPlatformCross, Content: "v2"}))
	rep, err := s.GetReport(ctx, "2026-02", domain.ReportPlatformCross, "")
	require.NoError(t, err)
	require.Equal(t, "v2", rep.Content)

	done, attempt, err := s.EnsureSyncJob(ctx, "job-1")
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 1, attempt)
	require.NoError(t, s.MarkSyncJobDone(ctx, "job-1"))
	done, attempt, err = s.EnsureSyncJob(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 2, attempt)

	require.NoError(t, s.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event: domain.BusinessMetricEventCSVImported, Brand: "prins", Metadata: map[string]any{"inserted": 3},
	}))
}

func TestClassifyContextErrors(t *testing.T) {
	err := classify("op", context.DeadlineExceeded)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	plain := classify("op", errors.New("constraint failed"))
	require.False(t, errors.Is(plain, domain.ErrStorageUnavailable))
	require.NoError(t, classify("op", nil))
}
