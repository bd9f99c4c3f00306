package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// Config задаёт параметры Graph API.
type Config struct {
	BaseURL    string
	APIVersion string
	RPS        float64
	Timeout    time.Duration
}

// Client читает посты и подписчиков страниц Facebook и Instagram.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	version string
	logger  zerolog.Logger
}

var _ domain.MetaSource = (*Client)(nil)

const (
	recentFacebookFields  = "message,created_time,shares,likes.summary(true),comments.summary(true),insights.metric(post_media_view,post_clicks)"
	historyFacebookFields = "message,created_time,shares,likes.summary(true),comments.summary(true),insights.metric(post_impressions_unique,post_media_view,post_clicks)"
	mediaFields           = "id,caption,timestamp,like_count,comments_count,media_type"
	historyMediaFields    = mediaFields + ",insights.metric(reach,views)"

	historyFacebookLimit  = 25
	historyInstagramLimit = 50
)

// New создаёт клиент.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		version: strings.Trim(cfg.APIVersion, "/"),
		logger:  logger.With().Str("component", "meta").Logger(),
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type paging struct {
	Next string `json:"next"`
}

type summaryEdge struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type insightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime string          `json:"end_time"`
}

type insight struct {
	Name       string         `json:"name"`
	Values     []insightValue `json:"values"`
	TotalValue *struct {
		Value json.RawMessage `json:"value"`
	} `json:"total_value"`
}

type insightsEdge struct {
	Data []insight `json:"data"`
}

// value возвращает первое значение метрики; объекты и пустые значения дают 0.
func (e insightsEdge) value(name string) int64 {
	for _, in := range e.Data {
		if in.Name != name {
			continue
		}
		if len(in.Values) > 0 {
			return rawInt(in.Values[0].Value)
		}
		if in.TotalValue != nil {
			return rawInt(in.TotalValue.Value)
		}
	}
	return 0
}

func rawInt(raw json.RawMessage) int64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

type fbPost struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	Shares      struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Likes    summaryEdge  `json:"likes"`
	Comments summaryEdge  `json:"comments"`
	Insights insightsEdge `json:"insights"`
}

func (p fbPost) record() domain.RawRecord {
	reach := p.Insights.value("post_impressions_unique")
	return domain.RawRecord{
		"id":       p.ID,
		"date":     p.CreatedTime,
		"type":     "Post",
		"text":     p.Message,
		"reach":    reach,
		"views":    p.Insights.value("post_media_view"),
		"likes":    p.Likes.Summary.TotalCount,
		"comments": p.Comments.Summary.TotalCount,
		"shares":   p.Shares.Count,
		"clicks":   p.Insights.value("post_clicks"),
		"source":   "api",
	}
}

type igMedia struct {
	ID            string       `json:"id"`
	Caption       string       `json:"caption"`
	Timestamp     string       `json:"timestamp"`
	LikeCount     int64        `json:"like_count"`
	CommentsCount int64        `json:"comments_count"`
	MediaType     string       `json:"media_type"`
	Insights      insightsEdge `json:"insights"`
}

func (m igMedia) record(insights insightsEdge) domain.RawRecord {
	return domain.RawRecord{
		"id":       m.ID,
		"date":     m.Timestamp,
		"type":     m.MediaType,
		"text":     m.Caption,
		"reach":    insights.value("reach"),
		"views":    insights.value("views"),
		"likes":    m.LikeCount,
		"comments": m.CommentsCount,
		"shares":   int64(0),
		"clicks":   int64(0),
		"source":   "api",
	}
}

type postsPage struct {
	Data   []fbPost `json:"data"`
	Paging paging   `json:"paging"`
}

type mediaPage struct {
	Data   []igMedia `json:"data"`
	Paging paging    `json:"paging"`
}

func (c *Client) path(parts ...string) string {
	return "/" + c.version + "/" + strings.Join(parts, "/")
}

// get выполняет запрос; абсолютный URL (paging.next) используется как есть.
func (c *Client) get(ctx context.Context, op, url, token string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(out).
		SetError(&graphError{})
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		req.SetQueryParams(params).SetQueryParam("access_token", token)
	}
	start := time.Now()
	resp, err := req.Get(url)
	if err == nil && resp.IsError() {
		err = apiError(resp)
	}
	metrics.ObserveNetworkRequest("meta", op, "graph_api", start, err)
	if err != nil {
		return fmt.Errorf("meta: %s: %w", op, err)
	}
	return nil
}

func apiError(resp *resty.Response) error {
	if ge, ok := resp.Error().(*graphError); ok && ge.Error.Message != "" {
		return fmt.Errorf("status %d: %s (code %d)", resp.StatusCode(), ge.Error.Message, ge.Error.Code)
	}
	return fmt.Errorf("status %d", resp.StatusCode())
}

// FacebookPosts возвращает последние публикации страницы.
func (c *Client) FacebookPosts(ctx context.Context, acc domain.BrandAccount, limit int) ([]domain.RawRecord, error) {
	var page postsPage
	err := c.get(ctx, "facebook_posts", c.path(acc.PageID, "published_posts"), acc.MetaToken, map[string]string{
		"fields": recentFacebookFields,
		"limit":  strconv.Itoa(limit),
	}, &page)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RawRecord, 0, len(page.Data))
	for _, p := range page.Data {
		out = append(out, p.record())
	}
	return out, nil
}

// FacebookHistory листает публикации до первой старше sinceYear.
func (c *Client) FacebookHistory(ctx context.Context, acc domain.BrandAccount, sinceYear int, pageFn domain.PageFunc) error {
	url := c.path(acc.PageID, "published_posts")
	params := map[string]string{"fields": historyFacebookFields, "limit": strconv.Itoa(historyFacebookLimit)}
	for url != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		var page postsPage
		if err := c.get(ctx, "facebook_history", url, acc.MetaToken, params, &page); err != nil {
			return err
		}
		records := make([]domain.RawRecord, 0, len(page.Data))
		stop := false
		for _, p := range page.Data {
			if olderThan(p.CreatedTime, sinceYear) {
				stop = true
				break
			}
			records = append(records, p.record())
		}
		if len(records) > 0 {
			if err := pageFn(records); err != nil {
				return err
			}
		}
		if stop {
			return nil
		}
		url = page.Paging.Next
	}
	return nil
}

// InstagramAccount возвращает бизнес-аккаунт, привязанный к странице.
func (c *Client) InstagramAccount(ctx context.Context, acc domain.BrandAccount) (domain.InstagramAccount, error) {
	var resp struct {
		ID      string `json:"id"`
		Account *struct {
			ID             string `json:"id"`
			FollowersCount int64  `json:"followers_count"`
		} `json:"instagram_business_account"`
	}
	err := c.get(ctx, "instagram_account", c.path(acc.PageID), acc.MetaToken, map[string]string{
		"fields": "id,instagram_business_account{followers_count}",
	}, &resp)
	if err != nil {
		return domain.InstagramAccount{}, err
	}
	if resp.ID == "" {
		return domain.InstagramAccount{}, fmt.Errorf("meta: instagram_account: в ответе нет id страницы")
	}
	if resp.Account == nil || resp.Account.ID == "" {
		return domain.InstagramAccount{}, fmt.Errorf("meta: %s: %w", acc.Brand, domain.ErrAccountMissing)
	}
	return domain.InstagramAccount{ID: resp.Account.ID, Followers: resp.Account.FollowersCount}, nil
}

// InstagramPosts возвращает последние медиа с охватом и просмотрами.
func (c *Client) InstagramPosts(ctx context.Context, acc domain.BrandAccount, limit int) ([]domain.RawRecord, error) {
	ig, err := c.InstagramAccount(ctx, acc)
	if err != nil {
		return nil, err
	}
	var page mediaPage
	if err := c.get(ctx, "instagram_media", c.path(ig.ID, "media"), acc.MetaToken, map[string]string{
		"fields": mediaFields,
		"limit":  strconv.Itoa(limit),
	}, &page); err != nil {
		return nil, err
	}
	out := make([]domain.RawRecord, 0, len(page.Data))
	for _, m := range page.Data {
		var insights insightsEdge
		if err := c.get(ctx, "instagram_media_insights", c.path(m.ID, "insights"), acc.MetaToken, map[string]string{
			"metric": "reach,views",
		}, &insights); err != nil {
			// часть типов медиа не отдаёт инсайты
			c.logger.Debug().Err(err).Str("media", m.ID).Msg("meta: инсайты недоступны")
		}
		out = append(out, m.record(insights))
	}
	return out, nil
}

// InstagramHistory листает медиа до первого старше sinceYear.
func (c *Client) InstagramHistory(ctx context.Context, acc domain.BrandAccount, sinceYear int, pageFn domain.PageFunc) error {
	ig, err := c.InstagramAccount(ctx, acc)
	if err != nil {
		return err
	}
	url := c.path(ig.ID, "media")
	params := map[string]string{"fields": historyMediaFields, "limit": strconv.Itoa(historyInstagramLimit)}
	for url != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		var page mediaPage
		if err := c.get(ctx, "instagram_history", url, acc.MetaToken, params, &page); err != nil {
			return err
		}
		records := make([]domain.RawRecord, 0, len(page.Data))
		stop := false
		for _, m := range page.Data {
			if olderThan(m.Timestamp, sinceYear) {
				stop = true
				break
			}
			records = append(records, m.record(m.Insights))
		}
		if len(records) > 0 {
			if err := pageFn(records); err != nil {
				return err
			}
		}
		if stop {
			return nil
		}
		url = page.Paging.Next
	}
	return nil
}

type dailySeries struct {
	Data []insight `json:"data"`
}

func (s dailySeries) values() []domain.DailyValue {
	var out []domain.DailyValue
	for _, in := range s.Data {
		for _, v := range in.Values {
			out = append(out, domain.DailyValue{EndTime: v.EndTime, Value: rawInt(v.Value)})
		}
	}
	return out
}

// FacebookDailyFollows возвращает дневные значения page_follows.
func (c *Client) FacebookDailyFollows(ctx context.Context, acc domain.BrandAccount, since, until time.Time) ([]domain.DailyValue, error) {
	var series dailySeries
	err := c.get(ctx, "facebook_follows", c.path(acc.PageID, "insights"), acc.MetaToken, map[string]string{
		"metric": "page_follows",
		"period": "day",
		"since":  strconv.FormatInt(since.Unix(), 10),
		"until":  strconv.FormatInt(until.Unix(), 10),
	}, &series)
	if err != nil {
		return nil, err
	}
	return series.values(), nil
}

// InstagramFollowerDeltas возвращает дневной прирост подписчиков за последние 30 дней.
func (c *Client) InstagramFollowerDeltas(ctx context.Context, acc domain.BrandAccount, igID string) ([]domain.DailyValue, error) {
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -29)
	var series dailySeries
	err := c.get(ctx, "instagram_follower_count", c.path(igID, "insights"), acc.MetaToken, map[string]string{
		"metric": "follower_count",
		"period": "day",
		"since":  strconv.FormatInt(since.Unix(), 10),
		"until":  strconv.FormatInt(until.Unix(), 10),
	}, &series)
	if err != nil {
		return nil, err
	}
	return series.values(), nil
}

func olderThan(created string, sinceYear int) bool {
	if len(created) < 4 {
		return false
	}
	year, err := strconv.Atoi(created[:4])
	if err != nil {
		return false
	}
	return year < sinceYear
}
