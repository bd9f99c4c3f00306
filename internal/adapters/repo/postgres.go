package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo           = (*Postgres)(nil)
	_ domain.FollowerRepo       = (*Postgres)(nil)
	_ domain.UploadRepo         = (*Postgres)(nil)
	_ domain.RemarkRepo         = (*Postgres)(nil)
	_ domain.ReportRepo         = (*Postgres)(nil)
	_ domain.SyncJobStatusRepo  = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close закрывает пул.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// UpsertPost вставляет пост или сливает reach/impressions одним выражением.
// Остальные поля существующей строки не меняются.
func (p *Postgres) UpsertPost(ctx context.Context, post domain.Post) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var inserted bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (platform, brand, external_id, published_at, content_type, text,
                   reach, impressions, likes, comments, shares, clicks,
                   engagement, engagement_rate, theme, campaign, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
ON CONFLICT (platform, brand, published_at, text) DO UPDATE
    SET reach = CASE WHEN EXCLUDED.reach > 0 THEN EXCLUDED.reach ELSE posts.reach END,
        impressions = CASE WHEN EXCLUDED.impressions > 0 THEN EXCLUDED.impressions ELSE posts.impressions END
RETURNING (xmax = 0) AS inserted
`, string(post.Platform), post.Brand, post.ExternalID, post.PublishedAt, post.ContentType, post.Text,
		post.Reach, post.Impressions, post.Likes, post.Comments, post.Shares, post.Clicks,
		post.Engagement, post.EngagementRate, post.Theme, post.Campaign, post.Source).Scan(&inserted)
	metrics.ObserveNetworkRequest("postgres", "posts_upsert", "posts", start, err)
	if err != nil {
		return false, classify("upsert post", err)
	}
	return inserted, nil
}

const postColumns = `id, platform, brand, external_id, published_at, content_type, text,
       reach, impressions, likes, comments, shares, clicks, engagement, engagement_rate,
       theme, campaign, source, created_at`

// postFilterSQL строит WHERE по фильтру; placeholder возвращает плейсхолдер для n-го аргумента.
func postFilterSQL(f domain.PostFilter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Platform != "" {
		args = append(args, string(f.Platform))
		conds = append(conds, "platform = "+placeholder(len(args)))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		conds = append(conds, "brand = "+placeholder(len(args)))
	}
	if f.Month != "" {
		args = append(args, f.Month)
		conds = append(conds, "substr(published_at, 1, 7) = "+placeholder(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// ListPosts возвращает посты по фильтру, новые сверху.
func (p *Postgres) ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	where, args := postFilterSQL(filter, pgPlaceholder)
	start := time.Now()
	rows, err := p.pool.Query(ctx, "SELECT "+postColumns+" FROM posts"+where+" ORDER BY published_at DESC, id DESC", args...)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, classify("list posts", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			post     domain.Post
			platform string
		)
		if err := rows.Scan(&post.ID, &platform, &post.Brand, &post.ExternalID, &post.PublishedAt, &post.ContentType, &post.Text,
			&post.Reach, &post.Impressions, &post.Likes, &post.Comments, &post.Shares, &post.Clicks,
			&post.Engagement, &post.EngagementRate, &post.Theme, &post.Campaign, &post.Source, &post.CreatedAt); err != nil {
			return nil, classify("scan post", err)
		}
		post.Platform = domain.Platform(platform)
		posts = append(posts, post)
	}
	return posts, classify("list posts", rows.Err())
}

const monthlyStatsSQL = `
SELECT platform, brand, substr(published_at, 1, 7) AS month,
       COUNT(*), COALESCE(SUM(likes), 0), COALESCE(SUM(comments), 0), COALESCE(SUM(shares), 0),
       COALESCE(SUM(engagement), 0), COALESCE(SUM(reach), 0), COALESCE(SUM(impressions), 0)
FROM posts`

const monthlyStatsTail = ` GROUP BY platform, brand, substr(published_at, 1, 7) ORDER BY month DESC, platform, brand`

// MonthlyStats считает агрегаты по месяцам; пустая платформа означает все.
func (p *Postgres) MonthlyStats(ctx context.Context, platform domain.Platform) ([]domain.MonthlyStat, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	where, args := postFilterSQL(domain.PostFilter{Platform: platform}, pgPlaceholder)
	start := time.Now()
	rows, err := p.pool.Query(ctx, monthlyStatsSQL+where+monthlyStatsTail, args...)
	metrics.ObserveNetworkRequest("postgres", "posts_monthly_stats", "posts", start, err)
	if err != nil {
		return nil, classify("monthly stats", err)
	}
	defer rows.Close()

	var stats []domain.MonthlyStat
	for rows.Next() {
		var (
			s  domain.MonthlyStat
			pl string
		)
		if err := rows.Scan(&pl, &s.Brand, &s.Month, &s.TotalPosts, &s.TotalLikes, &s.TotalComments,
			&s.TotalShares, &s.TotalEngagement, &s.TotalReach, &s.TotalImpressions); err != nil {
			return nil, classify("scan monthly stats", err)
		}
		s.Platform = domain.Platform(pl)
		stats = append(stats, s)
	}
	return stats, classify("monthly stats", rows.Err())
}

// UpdatePostLabels задаёт тему и кампанию поста.
func (p *Postgres) UpdatePostLabels(ctx context.Context, id int64, theme, campaign string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE posts SET theme = $2, campaign = $3 WHERE id = $1`, id, theme, campaign)
	metrics.ObserveNetworkRequest("postgres", "posts_update_labels", "posts", start, err)
	if err != nil {
		return classify("update labels", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertFollowerSnapshot записывает число подписчиков за месяц, заменяя прежнее.
func (p *Postgres) UpsertFollowerSnapshot(ctx context.Context, snap domain.FollowerSnapshot) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO follower_snapshots (platform, brand, month, followers, recorded_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (platform, brand, month) DO UPDATE
    SET followers = EXCLUDED.followers,
        recorded_at = now()
`, string(snap.Platform), snap.Brand, snap.Month, snap.Followers)
	metrics.ObserveNetworkRequest("postgres", "followers_upsert", "follower_snapshots", start, err)
	return classify("upsert followers", err)
}

// GetFollowerCount возвращает снимок за точный месяц.
func (p *Postgres) GetFollowerCount(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var n int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT followers FROM follower_snapshots WHERE platform = $1 AND brand = $2 AND month = $3
`, string(platform), brand, month).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "followers_get", "follower_snapshots", start, nil)
		return 0, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "followers_get", "follower_snapshots", start, err)
	if err != nil {
		return 0, false, classify("get followers", err)
	}
	return n, true, nil
}

// GetFollowerBefore возвращает ближайший снимок раньше month.
func (p *Postgres) GetFollowerBefore(ctx context.Context, platform domain.Platform, brand, month string) (domain.FollowerSnapshot, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	snap := domain.FollowerSnapshot{Platform: platform, Brand: brand}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT month, followers, recorded_at FROM follower_snapshots
WHERE platform = $1 AND brand = $2 AND month < $3
ORDER BY month DESC
LIMIT 1
`, string(platform), brand, month).Scan(&snap.Month, &snap.Followers, &snap.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "followers_before", "follower_snapshots", start, nil)
		return domain.FollowerSnapshot{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "followers_before", "follower_snapshots", start, err)
	if err != nil {
		return domain.FollowerSnapshot{}, false, classify("get previous followers", err)
	}
	return snap, true, nil
}

// ListFollowerSnapshots возвращает историю снимков от старых к новым; пустые аргументы не фильтруют.
func (p *Postgres) ListFollowerSnapshots(ctx context.Context, platform domain.Platform, brand string) ([]domain.FollowerSnapshot, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT platform, brand, month, followers, recorded_at FROM follower_snapshots
WHERE ($1 = '' OR platform = $1) AND ($2 = '' OR brand = $2)
ORDER BY platform, brand, month
`, string(platform), brand)
	metrics.ObserveNetworkRequest("postgres", "followers_list", "follower_snapshots", start, err)
	if err != nil {
		return nil, classify("list followers", err)
	}
	defer rows.Close()

	var out []domain.FollowerSnapshot
	for rows.Next() {
		var (
			s  domain.FollowerSnapshot
			pl string
		)
		if err := rows.Scan(&pl, &s.Brand, &s.Month, &s.Followers, &s.RecordedAt); err != nil {
			return nil, classify("scan followers", err)
		}
		s.Platform = domain.Platform(pl)
		out = append(out, s)
	}
	return out, classify("list followers", rows.Err())
}

// LogUpload добавляет запись в журнал импортов.
func (p *Postgres) LogUpload(ctx context.Context, rec domain.UploadRecord) (domain.UploadRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO uploads (filename, platform, brand, post_count, uploaded_at)
VALUES ($1, $2, $3, $4, now())
RETURNING id, uploaded_at
`, rec.Filename, string(rec.Platform), rec.Brand, rec.PostCount).Scan(&rec.ID, &rec.UploadedAt)
	metrics.ObserveNetworkRequest("postgres", "uploads_insert", "uploads", start, err)
	if err != nil {
		return domain.UploadRecord{}, classify("log upload", err)
	}
	return rec, nil
}

// ListUploads возвращает журнал импортов, новые сверху.
func (p *Postgres) ListUploads(ctx context.Context) ([]domain.UploadRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, filename, platform, brand, post_count, uploaded_at FROM uploads ORDER BY uploaded_at DESC, id DESC
`)
	metrics.ObserveNetworkRequest("postgres", "uploads_list", "uploads", start, err)
	if err != nil {
		return nil, classify("list uploads", err)
	}
	defer rows.Close()

	var out []domain.UploadRecord
	for rows.Next() {
		var (
			rec domain.UploadRecord
			pl  string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &pl, &rec.Brand, &rec.PostCount, &rec.UploadedAt); err != nil {
			return nil, classify("scan upload", err)
		}
		rec.Platform = domain.Platform(pl)
		out = append(out, rec)
	}
	return out, classify("list uploads", rows.Err())
}

// AddRemark сохраняет замечание со статусом open.
func (p *Postgres) AddRemark(ctx context.Context, author, message string) (domain.Remark, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	r := domain.Remark{Author: author, Message: message, Status: domain.RemarkOpen}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO remarks (author, message, status, created_at) VALUES ($1, $2, $3, now())
RETURNING id, created_at
`, author, message, string(r.Status)).Scan(&r.ID, &r.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "remarks_insert", "remarks", start, err)
	if err != nil {
		return domain.Remark{}, classify("add remark", err)
	}
	return r, nil
}

// ListRemarks возвращает замечания, новые сверху.
func (p *Postgres) ListRemarks(ctx context.Context) ([]domain.Remark, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, author, message, status, created_at FROM remarks ORDER BY created_at DESC, id DESC`)
	metrics.ObserveNetworkRequest("postgres", "remarks_list", "remarks", start, err)
	if err != nil {
		return nil, classify("list remarks", err)
	}
	defer rows.Close()

	var out []domain.Remark
	for rows.Next() {
		var (
			r      domain.Remark
			status string
		)
		if err := rows.Scan(&r.ID, &r.Author, &r.Message, &status, &r.CreatedAt); err != nil {
			return nil, classify("scan remark", err)
		}
		r.Status = domain.RemarkStatus(status)
		out = append(out, r)
	}
	return out, classify("list remarks", rows.Err())
}

// UpdateRemarkStatus меняет статус замечания.
func (p *Postgres) UpdateRemarkStatus(ctx context.Context, id int64, status domain.RemarkStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE remarks SET status = $2 WHERE id = $1`, id, string(status))
	metrics.ObserveNetworkRequest("postgres", "remarks_update_status", "remarks", start, err)
	if err != nil {
		return classify("update remark", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveReport сохраняет отчёт, заменяя прежний за тот же месяц.
func (p *Postgres) SaveReport(ctx context.Context, report domain.Report) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO ai_reports (month, platform, brand, content, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (month, platform, brand) DO UPDATE
    SET content = EXCLUDED.content,
        created_at = now()
`, report.Month, report.Platform, report.Brand, report.Content)
	metrics.ObserveNetworkRequest("postgres", "reports_upsert", "ai_reports", start, err)
	return classify("save report", err)
}

// GetReport возвращает отчёт или domain.ErrNotFound.
func (p *Postgres) GetReport(ctx context.Context, month, platform, brand string) (domain.Report, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	r := domain.Report{Month: month, Platform: platform, Brand: brand}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT content, created_at FROM ai_reports WHERE month = $1 AND platform = $2 AND brand = $3
`, month, platform, brand).Scan(&r.Content, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "reports_get", "ai_reports", start, nil)
		return domain.Report{}, domain.ErrNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "reports_get", "ai_reports", start, err)
	if err != nil {
		return domain.Report{}, classify("get report", err)
	}
	return r, nil
}

// EnsureSyncJob регистрирует попытку обработки задачи синхронизации.
func (p *Postgres) EnsureSyncJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		done     sql.NullTime
		attempts int
	)

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO sync_jobs (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = sync_jobs.attempts + 1,
        updated_at = now()
RETURNING done_at, attempts
`, jobID).Scan(&done, &attempts)
	metrics.ObserveNetworkRequest("postgres", "sync_jobs_upsert", "sync_jobs", start, err)
	if err != nil {
		return false, 0, classify("ensure sync job", err)
	}

	return done.Valid, attempts, nil
}

// MarkSyncJobDone помечает задачу как выполненную.
func (p *Postgres) MarkSyncJobDone(ctx context.Context, jobID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE sync_jobs
SET done_at = COALESCE(done_at, now()),
    updated_at = now()
WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "sync_jobs_mark_done", "sync_jobs", start, err)
	return classify("mark sync job", err)
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, platform, brand, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, string(metric.Platform), metric.Brand, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return classify("record business metric", err)
}
