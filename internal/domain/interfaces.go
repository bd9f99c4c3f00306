package domain

import (
	"context"
	"errors"
	"time"
)

// PostFilter ограничивает выборку постов. Пустые поля не фильтруют.
type PostFilter struct {
	Platform Platform
	Brand    string
	Month    string
}

// PostRepo владеет строками постов.
type PostRepo interface {
	// UpsertPost атомарно вставляет пост или сливает reach/impressions в существующий.
	// inserted=true только для новой строки.
	UpsertPost(ctx context.Context, post Post) (inserted bool, err error)
	ListPosts(ctx context.Context, filter PostFilter) ([]Post, error)
	MonthlyStats(ctx context.Context, platform Platform) ([]MonthlyStat, error)
	UpdatePostLabels(ctx context.Context, id int64, theme, campaign string) error
}

// FollowerRepo владеет помесячными снимками подписчиков.
type FollowerRepo interface {
	UpsertFollowerSnapshot(ctx context.Context, snap FollowerSnapshot) error
	GetFollowerCount(ctx context.Context, platform Platform, brand, month string) (int64, bool, error)
	// GetFollowerBefore возвращает самый поздний снимок строго раньше month.
	GetFollowerBefore(ctx context.Context, platform Platform, brand, month string) (FollowerSnapshot, bool, error)
	ListFollowerSnapshots(ctx context.Context, platform Platform, brand string) ([]FollowerSnapshot, error)
}

// UploadRepo хранит журнал импортов.
type UploadRepo interface {
	LogUpload(ctx context.Context, rec UploadRecord) (UploadRecord, error)
	ListUploads(ctx context.Context) ([]UploadRecord, error)
}

// RemarkRepo хранит замечания.
type RemarkRepo interface {
	AddRemark(ctx context.Context, author, message string) (Remark, error)
	ListRemarks(ctx context.Context) ([]Remark, error)
	UpdateRemarkStatus(ctx context.Context, id int64, status RemarkStatus) error
}

// ReportRepo хранит AI-отчёты.
type ReportRepo interface {
	SaveReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, month, platform, brand string) (Report, error)
}

// ErrCacheMiss возвращается кэшем при отсутствии ключа.
var ErrCacheMiss = errors.New("cache: miss")

// Cache используется для TTL-хранилищ.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// PostCacheInvalidator сбрасывает кэш листингов и агрегатов после записи постов.
type PostCacheInvalidator interface {
	InvalidatePosts(ctx context.Context) error
}

// BrandAccount содержит идентификаторы бренда во внешних API.
type BrandAccount struct {
	Brand       string
	PageID      string
	MetaToken   string
	TikTokToken string
}

// DailyValue хранит значение дневной метрики.
type DailyValue struct {
	EndTime string
	Value   int64
}

// InstagramAccount описывает бизнес-аккаунт, привязанный к странице.
type InstagramAccount struct {
	ID        string
	Followers int64
}

// PageFunc получает очередную страницу истории.
type PageFunc func(records []RawRecord) error

// MetaSource читает посты и подписчиков из Graph API.
type MetaSource interface {
	FacebookPosts(ctx context.Context, acc BrandAccount, limit int) ([]RawRecord, error)
	InstagramPosts(ctx context.Context, acc BrandAccount, limit int) ([]RawRecord, error)
	FacebookHistory(ctx context.Context, acc BrandAccount, sinceYear int, page PageFunc) error
	InstagramHistory(ctx context.Context, acc BrandAccount, sinceYear int, page PageFunc) error
	FacebookDailyFollows(ctx context.Context, acc BrandAccount, since, until time.Time) ([]DailyValue, error)
	InstagramAccount(ctx context.Context, acc BrandAccount) (InstagramAccount, error)
	InstagramFollowerDeltas(ctx context.Context, acc BrandAccount, igID string) ([]DailyValue, error)
}

// TikTokSource читает видео и подписчиков TikTok.
type TikTokSource interface {
	Videos(ctx context.Context, token string, maxPages int, page PageFunc) error
	FollowerCount(ctx context.Context, token string) (int64, error)
}

// ReportGenerator превращает сводку данных в текст отчёта.
type ReportGenerator interface {
	Generate(ctx context.Context, summary string) (string, error)
}

// Notifier отправляет служебные уведомления.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Table содержит разобранный CSV: заголовок и строки, индексированные по заголовку.
type Table struct {
	Header []string
	Rows   []map[string]string
}
