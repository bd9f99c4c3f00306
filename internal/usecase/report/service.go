package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
)

// PostLister отдаёт посты за месяц.
type PostLister interface {
	PostsInMonth(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error)
}

// FollowerLookup читает снимки подписчиков.
type FollowerLookup interface {
	Lookup(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error)
}

// Service генерирует и хранит месячные отчёты.
type Service struct {
	posts     PostLister
	followers FollowerLookup
	reports   domain.ReportRepo
	generator domain.ReportGenerator
	metrics   domain.BusinessMetricRepo
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис отчётов. metricsRepo может быть nil.
func NewService(posts PostLister, followers FollowerLookup, reports domain.ReportRepo, generator domain.ReportGenerator, metricsRepo domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		posts:     posts,
		followers: followers,
		reports:   reports,
		generator: generator,
		metrics:   metricsRepo,
		logger:    logger.With().Str("component", "report").Logger(),
		now:       time.Now,
	}
}

// Generate строит сводку, вызывает генератор и сохраняет отчёт.
// platform "cross" или пустая строка означает все платформы.
func (s *Service) Generate(ctx context.Context, month, platform, brand string) (domain.Report, error) {
	scope, platforms, err := s.scope(month, platform)
	if err != nil {
		return domain.Report{}, err
	}
	brand = domain.NormalizeBrand(brand)

	filter := domain.PostFilter{Brand: brand, Month: month}
	if scope != domain.ReportPlatformCross {
		filter.Platform = domain.Platform(scope)
	}
	posts, err := s.posts.PostsInMonth(ctx, filter)
	if err != nil {
		return domain.Report{}, fmt.Errorf("посты за %s: %w", month, err)
	}
	figures, err := s.followerFigures(ctx, platforms, brand, month)
	if err != nil {
		return domain.Report{}, err
	}
	summary := BuildSummary(month, scope, brandLabel(brand), posts, figures)

	content, err := s.generator.Generate(ctx, summary.String())
	if err != nil {
		return domain.Report{}, fmt.Errorf("генерация отчёта: %w", err)
	}
	report := domain.Report{
		Month:     month,
		Platform:  scope,
		Brand:     brand,
		Content:   strings.TrimSpace(content),
		CreatedAt: s.now().UTC(),
	}
	if err := s.reports.SaveReport(ctx, report); err != nil {
		return domain.Report{}, fmt.Errorf("сохранение отчёта: %w", err)
	}
	s.logger.Info().Str("month", month).Str("platform", scope).Str("brand", brand).Int("posts", summary.Posts).Msg("report: сгенерирован")
	s.recordMetric(ctx, report, summary.Posts)
	return report, nil
}

// Get возвращает сохранённый отчёт или domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, month, platform, brand string) (domain.Report, error) {
	scope, _, err := s.scope(month, platform)
	if err != nil {
		return domain.Report{}, err
	}
	return s.reports.GetReport(ctx, month, scope, domain.NormalizeBrand(brand))
}

func (s *Service) scope(month, platform string) (string, []domain.Platform, error) {
	if err := domain.ValidateMonth(month); err != nil {
		return "", nil, err
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" || platform == domain.ReportPlatformCross {
		return domain.ReportPlatformCross, domain.Platforms, nil
	}
	p, err := domain.ParsePlatform(platform)
	if err != nil {
		return "", nil, err
	}
	return string(p), []domain.Platform{p}, nil
}

// followerFigures суммирует подписчиков по платформам. Для всех брендов подписчики не считаются.
func (s *Service) followerFigures(ctx context.Context, platforms []domain.Platform, brand, month string) (FollowerFigures, error) {
	var figures FollowerFigures
	if brand == "" || s.followers == nil {
		return figures, nil
	}
	prev, err := domain.MonthBefore(month)
	if err != nil {
		return figures, err
	}
	for _, p := range platforms {
		cur, ok, err := s.followers.Lookup(ctx, p, brand, month)
		if err != nil {
			return figures, fmt.Errorf("подписчики %s/%s: %w", p, brand, err)
		}
		if !ok {
			continue
		}
		figures.Current += cur
		figures.HasCurrent = true
		before, ok, err := s.followers.Lookup(ctx, p, brand, prev)
		if err != nil {
			return figures, fmt.Errorf("подписчики %s/%s: %w", p, brand, err)
		}
		if ok {
			figures.Previous += before
			figures.HasPrevious = true
		}
	}
	return figures, nil
}

func (s *Service) recordMetric(ctx context.Context, report domain.Report, posts int) {
	if s.metrics == nil {
		return
	}
	metric := domain.BusinessMetric{
		Event:    domain.BusinessMetricEventReportGenerated,
		Platform: domain.Platform(report.Platform),
		Brand:    report.Brand,
		Metadata: map[string]any{"month": report.Month, "posts": posts},
	}
	if err := s.metrics.RecordBusinessMetric(ctx, metric); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("report: не удалось записать бизнес-метрику")
	}
}

func brandLabel(brand string) string {
	if brand == "" {
		return "all brands"
	}
	return brand
}
