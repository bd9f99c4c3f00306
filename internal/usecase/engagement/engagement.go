package engagement

import (
	"context"
	"math"

	"social-tracker/internal/domain"
)

// Engagement считает вовлечённость: лайки + комментарии + репосты. Клики не входят.
func Engagement(likes, comments, shares int64) int64 {
	return likes + comments + shares
}

// Rate возвращает engagement/followers*100, округлённое до двух знаков; 0 без подписчиков.
func Rate(engagement, followers int64) float64 {
	if followers <= 0 {
		return 0
	}
	return math.Round(float64(engagement)/float64(followers)*100*100) / 100
}

// FollowerLookup возвращает подписчиков за точный месяц.
type FollowerLookup interface {
	Lookup(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error)
}

type batchKey struct {
	platform domain.Platform
	brand    string
	month    string
}

// BatchFollowers кэширует подписчиков в пределах одного батча. Не переиспользуется между батчами.
type BatchFollowers struct {
	lookup FollowerLookup
	cache  map[batchKey]int64
}

// NewBatchFollowers создаёт кэш на один батч.
func NewBatchFollowers(lookup FollowerLookup) *BatchFollowers {
	return &BatchFollowers{lookup: lookup, cache: make(map[batchKey]int64)}
}

// Followers возвращает подписчиков; отсутствие снимка даёт 0 без ошибки.
func (b *BatchFollowers) Followers(ctx context.Context, platform domain.Platform, brand, month string) (int64, error) {
	key := batchKey{platform: platform, brand: brand, month: month}
	if v, ok := b.cache[key]; ok {
		return v, nil
	}
	followers, ok, err := b.lookup.Lookup(ctx, platform, brand, month)
	if err != nil {
		return 0, err
	}
	if !ok {
		followers = 0
	}
	b.cache[key] = followers
	return followers, nil
}

// Apply заполняет Engagement и EngagementRate поста.
func (b *BatchFollowers) Apply(ctx context.Context, post *domain.Post) error {
	post.Engagement = Engagement(post.Likes, post.Comments, post.Shares)
	followers, err := b.Followers(ctx, post.Platform, post.Brand, post.Month())
	if err != nil {
		return err
	}
	post.EngagementRate = Rate(post.Engagement, followers)
	return nil
}
