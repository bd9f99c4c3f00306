package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"social-tracker/internal/domain"
)

// FollowerFigures содержит подписчиков на конец месяца и месяцем ранее.
type FollowerFigures struct {
	Current     int64
	HasCurrent  bool
	Previous    int64
	HasPrevious bool
}

// Summary агрегирует посты месяца для генератора отчёта.
type Summary struct {
	Month     string
	Platform  string
	Brand     string
	Posts     int
	Totals    domain.MonthlyStat
	AvgRate   float64
	Best      *domain.Post
	Types     map[string]int
	Weekdays  [7]int
	Followers FollowerFigures
}

// BuildSummary считает сводку по постам месяца. Посты других месяцев игнорируются.
func BuildSummary(month, platform, brand string, posts []domain.Post, followers FollowerFigures) Summary {
	s := Summary{
		Month:     month,
		Platform:  platform,
		Brand:     brand,
		Types:     make(map[string]int),
		Followers: followers,
	}
	var rateSum float64
	for i := range posts {
		p := posts[i]
		if p.Month() != month {
			continue
		}
		s.Posts++
		s.Totals.TotalLikes += p.Likes
		s.Totals.TotalComments += p.Comments
		s.Totals.TotalShares += p.Shares
		s.Totals.TotalEngagement += p.Engagement
		s.Totals.TotalReach += p.Reach
		s.Totals.TotalImpressions += p.Impressions
		rateSum += p.EngagementRate
		if s.Best == nil || p.Engagement > s.Best.Engagement {
			s.Best = &posts[i]
		}
		kind := p.ContentType
		if kind == "" {
			kind = "Unknown"
		}
		s.Types[kind]++
		if day, err := time.Parse("2006-01-02", p.PublishedAt[:min(len(p.PublishedAt), 10)]); err == nil {
			s.Weekdays[day.Weekday()]++
		}
	}
	s.Totals.TotalPosts = int64(s.Posts)
	if s.Posts > 0 {
		s.AvgRate = rateSum / float64(s.Posts)
	}
	return s
}

// String выдаёт текстовую сводку для LLM.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Month: %s\nPlatform: %s\nBrand: %s\n", s.Month, s.Platform, s.Brand)
	fmt.Fprintf(&b, "Posts: %d\n", s.Posts)
	if s.Posts == 0 {
		b.WriteString("No posts published this month.\n")
	} else {
		fmt.Fprintf(&b, "Likes: %d, comments: %d, shares: %d\n", s.Totals.TotalLikes, s.Totals.TotalComments, s.Totals.TotalShares)
		fmt.Fprintf(&b, "Total engagement: %d\nReach: %d\nImpressions: %d\n", s.Totals.TotalEngagement, s.Totals.TotalReach, s.Totals.TotalImpressions)
		fmt.Fprintf(&b, "Average engagement rate: %.2f%%\n", s.AvgRate)
		if s.Best != nil {
			fmt.Fprintf(&b, "Best post (%s, %s, engagement %d): %s\n", s.Best.PublishedAt, s.Best.ContentType, s.Best.Engagement, clip(s.Best.Text, 200))
		}
		b.WriteString("Content types: " + s.typeMix() + "\n")
		b.WriteString("Weekdays: " + s.weekdayMix() + "\n")
	}
	switch {
	case s.Followers.HasCurrent && s.Followers.HasPrevious:
		fmt.Fprintf(&b, "Followers: %d (%+d vs previous month)\n", s.Followers.Current, s.Followers.Current-s.Followers.Previous)
	case s.Followers.HasCurrent:
		fmt.Fprintf(&b, "Followers: %d (no previous month snapshot)\n", s.Followers.Current)
	default:
		b.WriteString("Followers: unknown\n")
	}
	return b.String()
}

func (s Summary) typeMix() string {
	kinds := make([]string, 0, len(s.Types))
	for k := range s.Types {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if s.Types[kinds[i]] != s.Types[kinds[j]] {
			return s.Types[kinds[i]] > s.Types[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, s.Types[k]))
	}
	return strings.Join(parts, ", ")
}

func (s Summary) weekdayMix() string {
	parts := make([]string, 0, 7)
	// неделя с понедельника
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		if s.Weekdays[d] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", d.String()[:3], s.Weekdays[d]))
	}
	return strings.Join(parts, ", ")
}

func clip(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
