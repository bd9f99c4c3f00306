package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// SQLite реализует те же репозитории поверх локального файла.
// Время хранится текстом в RFC3339Nano.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ domain.PostRepo           = (*SQLite)(nil)
	_ domain.FollowerRepo       = (*SQLite)(nil)
	_ domain.UploadRepo         = (*SQLite)(nil)
	_ domain.RemarkRepo         = (*SQLite)(nil)
	_ domain.ReportRepo         = (*SQLite)(nil)
	_ domain.SyncJobStatusRepo  = (*SQLite)(nil)
	_ domain.BusinessMetricRepo = (*SQLite)(nil)
)

// NewSQLite создаёт адаптер поверх открытой базы с применёнными миграциями.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Close закрывает базу.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func (s *SQLite) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseStamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func sqlitePlaceholder(int) string { return "?" }

// UpsertPost вставляет пост, а при конфликте ключа сливает reach/impressions.
// Оба шага идут в одной транзакции.
func (s *SQLite) UpsertPost(ctx context.Context, post domain.Post) (bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	inserted, err := s.upsertPostTx(ctx, post)
	metrics.ObserveNetworkRequest("sqlite", "posts_upsert", "posts", start, err)
	if err != nil {
		return false, classify("upsert post", err)
	}
	return inserted, nil
}

func (s *SQLite) upsertPostTx(ctx context.Context, post domain.Post) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO posts (platform, brand, external_id, published_at, content_type, text,
                   reach, impressions, likes, comments, shares, clicks,
                   engagement, engagement_rate, theme, campaign, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (platform, brand, published_at, text) DO NOTHING
`, string(post.Platform), post.Brand, post.ExternalID, post.PublishedAt, post.ContentType, post.Text,
		post.Reach, post.Impressions, post.Likes, post.Comments, post.Shares, post.Clicks,
		post.Engagement, post.EngagementRate, post.Theme, post.Campaign, post.Source, s.stamp())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	inserted := n > 0
	if !inserted {
		if _, err := tx.ExecContext(ctx, `
UPDATE posts
SET reach = CASE WHEN ? > 0 THEN ? ELSE reach END,
    impressions = CASE WHEN ? > 0 THEN ? ELSE impressions END
WHERE platform = ? AND brand = ? AND published_at = ? AND text = ?
`, post.Reach, post.Reach, post.Impressions, post.Impressions,
			string(post.Platform), post.Brand, post.PublishedAt, post.Text); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return inserted, nil
}

// ListPosts возвращает посты по фильтру, новые сверху.
func (s *SQLite) ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	where, args := postFilterSQL(filter, sqlitePlaceholder)
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, "SELECT "+postColumns+" FROM posts"+where+" ORDER BY published_at DESC, id DESC", args...)
	metrics.ObserveNetworkRequest("sqlite", "posts_list", "posts", start, err)
	if err != nil {
		return nil, classify("list posts", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			post      domain.Post
			platform  string
			createdAt string
		)
		if err := rows.Scan(&post.ID, &platform, &post.Brand, &post.ExternalID, &post.PublishedAt, &post.ContentType, &post.Text,
			&post.Reach, &post.Impressions, &post.Likes, &post.Comments, &post.Shares, &post.Clicks,
			&post.Engagement, &post.EngagementRate, &post.Theme, &post.Campaign, &post.Source, &createdAt); err != nil {
			return nil, classify("scan post", err)
		}
		post.Platform = domain.Platform(platform)
		post.CreatedAt = parseStamp(createdAt)
		posts = append(posts, post)
	}
	return posts, classify("list posts", rows.Err())
}

// MonthlyStats считает агрегаты по месяцам; пустая платформа означает все.
func (s *SQLite) MonthlyStats(ctx context.Context, platform domain.Platform) ([]domain.MonthlyStat, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	where, args := postFilterSQL(domain.PostFilter{Platform: platform}, sqlitePlaceholder)
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, monthlyStatsSQL+where+monthlyStatsTail, args...)
	metrics.ObserveNetworkRequest("sqlite", "posts_monthly_stats", "posts", start, err)
	if err != nil {
		return nil, classify("monthly stats", err)
	}
	defer rows.Close()

	var stats []domain.MonthlyStat
	for rows.Next() {
		var (
			st domain.MonthlyStat
			pl string
		)
		if err := rows.Scan(&pl, &st.Brand, &st.Month, &st.TotalPosts, &st.TotalLikes, &st.TotalComments,
			&st.TotalShares, &st.TotalEngagement, &st.TotalReach, &st.TotalImpressions); err != nil {
			return nil, classify("scan monthly stats", err)
		}
		st.Platform = domain.Platform(pl)
		stats = append(stats, st)
	}
	return stats, classify("monthly stats", rows.Err())
}

// UpdatePostLabels задаёт тему и кампанию поста.
func (s *SQLite) UpdatePostLabels(ctx context.Context, id int64, theme, campaign string) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET theme = ?, campaign = ? WHERE id = ?`, theme, campaign, id)
	metrics.ObserveNetworkRequest("sqlite", "posts_update_labels", "posts", start, err)
	if err != nil {
		return classify("update labels", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertFollowerSnapshot записывает число подписчиков за месяц, заменяя прежнее.
func (s *SQLite) UpsertFollowerSnapshot(ctx context.Context, snap domain.FollowerSnapshot) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO follower_snapshots (platform, brand, month, followers, recorded_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (platform, brand, month) DO UPDATE
    SET followers = excluded.followers,
        recorded_at = excluded.recorded_at
`, string(snap.Platform), snap.Brand, snap.Month, snap.Followers, s.stamp())
	metrics.ObserveNetworkRequest("sqlite", "followers_upsert", "follower_snapshots", start, err)
	return classify("upsert followers", err)
}

// GetFollowerCount возвращает снимок за точный месяц.
func (s *SQLite) GetFollowerCount(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	var n int64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT followers FROM follower_snapshots WHERE platform = ? AND brand = ? AND month = ?
`, string(platform), brand, month).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "followers_get", "follower_snapshots", start, nil)
		return 0, false, nil
	}
	metrics.ObserveNetworkRequest("sqlite", "followers_get", "follower_snapshots", start, err)
	if err != nil {
		return 0, false, classify("get followers", err)
	}
	return n, true, nil
}

// GetFollowerBefore возвращает ближайший снимок раньше month.
func (s *SQLite) GetFollowerBefore(ctx context.Context, platform domain.Platform, brand, month string) (domain.FollowerSnapshot, bool, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	snap := domain.FollowerSnapshot{Platform: platform, Brand: brand}
	var recorded string
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT month, followers, recorded_at FROM follower_snapshots
WHERE platform = ? AND brand = ? AND month < ?
ORDER BY month DESC
LIMIT 1
`, string(platform), brand, month).Scan(&snap.Month, &snap.Followers, &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "followers_before", "follower_snapshots", start, nil)
		return domain.FollowerSnapshot{}, false, nil
	}
	metrics.ObserveNetworkRequest("sqlite", "followers_before", "follower_snapshots", start, err)
	if err != nil {
		return domain.FollowerSnapshot{}, false, classify("get previous followers", err)
	}
	snap.RecordedAt = parseStamp(recorded)
	return snap, true, nil
}

// ListFollowerSnapshots возвращает историю снимков от старых к новым; пустые аргументы не фильтруют.
func (s *SQLite) ListFollowerSnapshots(ctx context.Context, platform domain.Platform, brand string) ([]domain.FollowerSnapshot, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT platform, brand, month, followers, recorded_at FROM follower_snapshots
WHERE (?1 = '' OR platform = ?1) AND (?2 = '' OR brand = ?2)
ORDER BY platform, brand, month
`, string(platform), brand)
	metrics.ObserveNetworkRequest("sqlite", "followers_list", "follower_snapshots", start, err)
	if err != nil {
		return nil, classify("list followers", err)
	}
	defer rows.Close()

	var out []domain.FollowerSnapshot
	for rows.Next() {
		var (
			snap     domain.FollowerSnapshot
			pl       string
			recorded string
		)
		if err := rows.Scan(&pl, &snap.Brand, &snap.Month, &snap.Followers, &recorded); err != nil {
			return nil, classify("scan followers", err)
		}
		snap.Platform = domain.Platform(pl)
		snap.RecordedAt = parseStamp(recorded)
		out = append(out, snap)
	}
	return out, classify("list followers", rows.Err())
}

// LogUpload добавляет запись в журнал импортов.
func (s *SQLite) LogUpload(ctx context.Context, rec domain.UploadRecord) (domain.UploadRecord, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	now := s.now().UTC()
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO uploads (filename, platform, brand, post_count, uploaded_at) VALUES (?, ?, ?, ?, ?)
`, rec.Filename, string(rec.Platform), rec.Brand, rec.PostCount, now.Format(time.RFC3339Nano))
	metrics.ObserveNetworkRequest("sqlite", "uploads_insert", "uploads", start, err)
	if err != nil {
		return domain.UploadRecord{}, classify("log upload", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.UploadRecord{}, classify("log upload", err)
	}
	rec.ID = id
	rec.UploadedAt = now
	return rec, nil
}

// ListUploads возвращает журнал импортов, новые сверху.
func (s *SQLite) ListUploads(ctx context.Context) ([]domain.UploadRecord, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, filename, platform, brand, post_count, uploaded_at FROM uploads ORDER BY uploaded_at DESC, id DESC
`)
	metrics.ObserveNetworkRequest("sqlite", "uploads_list", "uploads", start, err)
	if err != nil {
		return nil, classify("list uploads", err)
	}
	defer rows.Close()

	var out []domain.UploadRecord
	for rows.Next() {
		var (
			rec      domain.UploadRecord
			pl       string
			uploaded string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &pl, &rec.Brand, &rec.PostCount, &uploaded); err != nil {
			return nil, classify("scan upload", err)
		}
		rec.Platform = domain.Platform(pl)
		rec.UploadedAt = parseStamp(uploaded)
		out = append(out, rec)
	}
	return out, classify("list uploads", rows.Err())
}

// AddRemark сохраняет замечание со статусом open.
func (s *SQLite) AddRemark(ctx context.Context, author, message string) (domain.Remark, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	r := domain.Remark{Author: author, Message: message, Status: domain.RemarkOpen, CreatedAt: s.now().UTC()}
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO remarks (author, message, status, created_at) VALUES (?, ?, ?, ?)
`, author, message, string(r.Status), r.CreatedAt.Format(time.RFC3339Nano))
	metrics.ObserveNetworkRequest("sqlite", "remarks_insert", "remarks", start, err)
	if err != nil {
		return domain.Remark{}, classify("add remark", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return domain.Remark{}, classify("add remark", err)
	}
	return r, nil
}

// ListRemarks возвращает замечания, новые сверху.
func (s *SQLite) ListRemarks(ctx context.Context) ([]domain.Remark, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id, author, message, status, created_at FROM remarks ORDER BY created_at DESC, id DESC`)
	metrics.ObserveNetworkRequest("sqlite", "remarks_list", "remarks", start, err)
	if err != nil {
		return nil, classify("list remarks", err)
	}
	defer rows.Close()

	var out []domain.Remark
	for rows.Next() {
		var (
			r       domain.Remark
			status  string
			created string
		)
		if err := rows.Scan(&r.ID, &r.Author, &r.Message, &status, &created); err != nil {
			return nil, classify("scan remark", err)
		}
		r.Status = domain.RemarkStatus(status)
		r.CreatedAt = parseStamp(created)
		out = append(out, r)
	}
	return out, classify("list remarks", rows.Err())
}

// UpdateRemarkStatus меняет статус замечания.
func (s *SQLite) UpdateRemarkStatus(ctx context.Context, id int64, status domain.RemarkStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE remarks SET status = ? WHERE id = ?`, string(status), id)
	metrics.ObserveNetworkRequest("sqlite", "remarks_update_status", "remarks", start, err)
	if err != nil {
		return classify("update remark", err)
	}
	return requireAffected(res)
}

// SaveReport сохраняет отчёт, заменяя прежний за тот же месяц.
func (s *SQLite) SaveReport(ctx context.Context, report domain.Report) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ai_reports (month, platform, brand, content, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (month, platform, brand) DO UPDATE
    SET content = excluded.content,
        created_at = excluded.created_at
`, report.Month, report.Platform, report.Brand, report.Content, s.stamp())
	metrics.ObserveNetworkRequest("sqlite", "reports_upsert", "ai_reports", start, err)
	return classify("save report", err)
}

// GetReport возвращает отчёт или domain.ErrNotFound.
func (s *SQLite) GetReport(ctx context.Context, month, platform, brand string) (domain.Report, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	r := domain.Report{Month: month, Platform: platform, Brand: brand}
	var created string
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT content, created_at FROM ai_reports WHERE month = ? AND platform = ? AND brand = ?
`, month, platform, brand).Scan(&r.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "reports_get", "ai_reports", start, nil)
		return domain.Report{}, domain.ErrNotFound
	}
	metrics.ObserveNetworkRequest("sqlite", "reports_get", "ai_reports", start, err)
	if err != nil {
		return domain.Report{}, classify("get report", err)
	}
	r.CreatedAt = parseStamp(created)
	return r, nil
}

// EnsureSyncJob регистрирует попытку обработки задачи синхронизации.
func (s *SQLite) EnsureSyncJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	var (
		done     sql.NullString
		attempts int
	)
	now := s.stamp()
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO sync_jobs (job_id, attempts, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (job_id) DO UPDATE
    SET attempts = sync_jobs.attempts + 1,
        updated_at = excluded.updated_at
RETURNING done_at, attempts
`, jobID, now).Scan(&done, &attempts)
	metrics.ObserveNetworkRequest("sqlite", "sync_jobs_upsert", "sync_jobs", start, err)
	if err != nil {
		return false, 0, classify("ensure sync job", err)
	}
	return done.Valid, attempts, nil
}

// MarkSyncJobDone помечает задачу как выполненную.
func (s *SQLite) MarkSyncJobDone(ctx context.Context, jobID string) error {
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	now := s.stamp()
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
UPDATE sync_jobs
SET done_at = COALESCE(done_at, ?),
    updated_at = ?
WHERE job_id = ?
`, now, now, jobID)
	metrics.ObserveNetworkRequest("sqlite", "sync_jobs_mark_done", "sync_jobs", start, err)
	return classify("mark sync job", err)
}

// RecordBusinessMetric сохраняет бизнесовую метрику.
func (s *SQLite) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = s.now().UTC()
	}
	ctx, cancel := s.connCtx(ctx)
	defer cancel()

	var payload sql.NullString
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = sql.NullString{String: string(data), Valid: true}
		}
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO business_metrics (event, platform, brand, metadata, occurred_at) VALUES (?, ?, ?, ?, ?)
`, metric.Event, string(metric.Platform), metric.Brand, payload, metric.OccurredAt.UTC().Format(time.RFC3339Nano))
	metrics.ObserveNetworkRequest("sqlite", "business_metrics_insert", "business_metrics", start, err)
	return classify("record business metric", err)
}
