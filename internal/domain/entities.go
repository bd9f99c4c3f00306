package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform описывает социальную сеть.
type Platform string

const (
	// PlatformFacebook обозначает страницу Facebook.
	PlatformFacebook Platform = "facebook"
	// PlatformInstagram обозначает бизнес-аккаунт Instagram.
	PlatformInstagram Platform = "instagram"
	// PlatformTikTok обозначает аккаунт TikTok.
	PlatformTikTok Platform = "tiktok"
)

// Platforms перечисляет поддерживаемые платформы.
var Platforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformTikTok}

// ParsePlatform проверяет название платформы.
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, raw)
}

// NormalizeBrand приводит имя бренда к виду, в котором оно хранится и входит в ключи.
func NormalizeBrand(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Post описывает публикацию с метриками на момент загрузки.
// Натуральный ключ: (Platform, Brand, PublishedAt, Text).
type Post struct {
	ID             int64     `json:"id"`
	Platform       Platform  `json:"platform"`
	Brand          string    `json:"brand"`
	ExternalID     string    `json:"external_id,omitempty"`
	PublishedAt    string    `json:"published_at"`
	ContentType    string    `json:"content_type"`
	Text           string    `json:"text"`
	Reach          int64     `json:"reach"`
	Impressions    int64     `json:"impressions"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	Shares         int64     `json:"shares"`
	Clicks         int64     `json:"clicks"`
	Engagement     int64     `json:"engagement"`
	EngagementRate float64   `json:"engagement_rate"`
	Theme          string    `json:"theme"`
	Campaign       string    `json:"campaign"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}

// Month возвращает месяц публикации в формате YYYY-MM.
func (p Post) Month() string {
	return MonthOf(p.PublishedAt)
}

// FollowerSnapshot хранит число подписчиков пары (платформа, бренд) за месяц.
type FollowerSnapshot struct {
	Platform   Platform  `json:"platform"`
	Brand      string    `json:"brand"`
	Month      string    `json:"month"`
	Followers  int64     `json:"followers"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UploadRecord описывает запись аудита импорта CSV.
type UploadRecord struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Platform   Platform  `json:"platform"`
	Brand      string    `json:"brand"`
	PostCount  int       `json:"post_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// MonthlyStat содержит агрегаты по (платформа, бренд, месяц).
type MonthlyStat struct {
	Platform         Platform `json:"platform"`
	Brand            string   `json:"brand"`
	Month            string   `json:"month"`
	TotalPosts       int64    `json:"total_posts"`
	TotalLikes       int64    `json:"total_likes"`
	TotalComments    int64    `json:"total_comments"`
	TotalShares      int64    `json:"total_shares"`
	TotalEngagement  int64    `json:"total_engagement"`
	TotalReach       int64    `json:"total_reach"`
	TotalImpressions int64    `json:"total_impressions"`
}

// RemarkStatus описывает состояние замечания.
type RemarkStatus string

const (
	RemarkOpen       RemarkStatus = "open"
	RemarkInProgress RemarkStatus = "in_progress"
	RemarkDone       RemarkStatus = "done"
)

// Valid сообщает, известен ли статус.
func (s RemarkStatus) Valid() bool {
	switch s {
	case RemarkOpen, RemarkInProgress, RemarkDone:
		return true
	}
	return false
}

// Remark описывает замечание команды к дашборду.
type Remark struct {
	ID        int64        `json:"id"`
	Author    string       `json:"author"`
	Message   string       `json:"message"`
	Status    RemarkStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReportPlatformCross обозначает отчёт по всем платформам.
const ReportPlatformCross = "cross"

// Report хранит сгенерированный AI-отчёт за месяц.
type Report struct {
	Month     string    `json:"month"`
	Platform  string    `json:"platform"`
	Brand     string    `json:"brand"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RawRecord хранит сырую запись источника с каноническими ключами
// (date, type, text, reach, views, likes, comments, shares, clicks, brand, id, source).
type RawRecord map[string]any

// String возвращает строковое значение поля.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// BatchResult подводит итог загрузки батча постов.
type BatchResult struct {
	Inserted            int `json:"inserted"`
	Merged              int `json:"merged"`
	SkippedUnknownBrand int `json:"skipped_unknown_brand"`
	SkippedNoDate       int `json:"skipped_no_date"`
	Failed              int `json:"failed"`
}

// Add суммирует результаты.
func (r *BatchResult) Add(other BatchResult) {
	r.Inserted += other.Inserted
	r.Merged += other.Merged
	r.SkippedUnknownBrand += other.SkippedUnknownBrand
	r.SkippedNoDate += other.SkippedNoDate
	r.Failed += other.Failed
}

func (r BatchResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new posts inserted, %d skipped (unknown account)", r.Inserted, r.SkippedUnknownBrand)
	if r.SkippedNoDate > 0 {
		fmt.Fprintf(&b, ", %d skipped (no date)", r.SkippedNoDate)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}
	return b.String()
}
