package tiktok

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

const (
	videoFields = "id,title,create_time,view_count,like_count,comment_count,share_count"
	userFields  = "display_name,follower_count,following_count,likes_count,video_count"
	maxCount    = 20
)

// Config задаёт параметры TikTok API.
type Config struct {
	BaseURL string
	RPS     float64
	Timeout time.Duration
}

// Client читает видео и подписчиков аккаунта TikTok.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

var _ domain.TikTokSource = (*Client)(nil)

// New создаёт клиент.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		logger:  logger.With().Str("component", "tiktok").Logger(),
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type videoListResponse struct {
	Data struct {
		Videos []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			CreateTime   int64  `json:"create_time"`
			ViewCount    int64  `json:"view_count"`
			LikeCount    int64  `json:"like_count"`
			CommentCount int64  `json:"comment_count"`
			ShareCount   int64  `json:"share_count"`
		} `json:"videos"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	} `json:"data"`
	Error apiError `json:"error"`
}

type userInfoResponse struct {
	Data struct {
		User *struct {
			DisplayName   string `json:"display_name"`
			FollowerCount int64  `json:"follower_count"`
		} `json:"user"`
	} `json:"data"`
	Error apiError `json:"error"`
}

func (e apiError) failed() bool {
	return e.Code != "" && e.Code != "ok"
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	// TikTok не всегда отдаёт application/json, без этого resty не разбирает тело
	resp, err := req.SetContext(ctx).ForceContentType("application/json").Execute(method, path)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	metrics.ObserveNetworkRequest("tiktok", op, "tiktok_api", start, err)
	if err != nil {
		return fmt.Errorf("tiktok: %s: %w", op, err)
	}
	return nil
}

// Videos листает видео через cursor; maxPages <= 0 снимает ограничение.
// Записи уже приведены к каноническим полям: view_count идёт в views, охват и клики нулевые.
func (c *Client) Videos(ctx context.Context, token string, maxPages int, page domain.PageFunc) error {
	var cursor int64
	for n := 0; maxPages <= 0 || n < maxPages; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		body := map[string]any{"max_count": maxCount}
		if cursor > 0 {
			body["cursor"] = cursor
		}
		var out videoListResponse
		req := c.http.R().
			SetAuthToken(token).
			SetQueryParam("fields", videoFields).
			SetBody(body).
			SetResult(&out).
			SetError(&out)
		if err := c.do(ctx, "video_list", req, resty.MethodPost, "/video/list/"); err != nil {
			return err
		}
		if out.Error.failed() {
			return fmt.Errorf("tiktok: video_list: %s: %s", out.Error.Code, out.Error.Message)
		}
		records := make([]domain.RawRecord, 0, len(out.Data.Videos))
		for _, v := range out.Data.Videos {
			records = append(records, domain.RawRecord{
				"id":       v.ID,
				"date":     time.Unix(v.CreateTime, 0).UTC().Format("2006-01-02T15:04:05"),
				"type":     "Video",
				"text":     v.Title,
				"reach":    int64(0),
				"views":    v.ViewCount,
				"likes":    v.LikeCount,
				"comments": v.CommentCount,
				"shares":   v.ShareCount,
				"clicks":   int64(0),
				"source":   "tiktok_api",
			})
		}
		if len(records) > 0 {
			if err := page(records); err != nil {
				return err
			}
		}
		if !out.Data.HasMore || out.Data.Cursor == cursor {
			return nil
		}
		cursor = out.Data.Cursor
	}
	return nil
}

// FollowerCount возвращает текущее число подписчиков.
func (c *Client) FollowerCount(ctx context.Context, token string) (int64, error) {
	var out userInfoResponse
	req := c.http.R().
		SetAuthToken(token).
		SetQueryParam("fields", userFields).
		SetResult(&out).
		SetError(&out)
	if err := c.do(ctx, "user_info", req, resty.MethodGet, "/user/info/"); err != nil {
		return 0, err
	}
	if out.Error.failed() {
		return 0, fmt.Errorf("tiktok: user_info: %s: %s", out.Error.Code, out.Error.Message)
	}
	if out.Data.User == nil {
		return 0, fmt.Errorf("tiktok: user_info: в ответе нет data.user")
	}
	return out.Data.User.FollowerCount, nil
}
