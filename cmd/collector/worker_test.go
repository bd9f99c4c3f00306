package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
)

type delivery struct {
	job   domain.SyncJob
	acked []bool
}

type queueStub struct {
	pending []*delivery
	all     []*delivery
	cancel  context.CancelFunc
}

func (q *queueStub) Enqueue(context.Context, domain.SyncJob) error { return nil }

func (q *queueStub) Receive(ctx context.Context) (domain.SyncJob, domain.AckFunc, error) {
	if len(q.pending) == 0 {
		q.cancel()
		return domain.SyncJob{}, nil, ctx.Err()
	}
	d := q.pending[0]
	q.pending = q.pending[1:]
	return d.job, func(success bool) error {
		d.acked = append(d.acked, success)
		if !success {
			q.pending = append(q.pending, d)
		}
		return nil
	}, nil
}

func (q *queueStub) push(job domain.SyncJob) *delivery {
	d := &delivery{job: job}
	q.pending = append(q.pending, d)
	q.all = append(q.all, d)
	return d
}

type statusStub struct {
	attempts map[string]int
	done     map[string]bool
}

func newStatusStub() *statusStub {
	return &statusStub{attempts: map[string]int{}, done: map[string]bool{}}
}

func (s *statusStub) EnsureSyncJob(_ context.Context, id string) (bool, int, error) {
	s.attempts[id]++
	return s.done[id], s.attempts[id], nil
}

func (s *statusStub) MarkSyncJobDone(_ context.Context, id string) error {
	s.done[id] = true
	return nil
}

type accountsStub struct{}

func (accountsStub) Account(brand string) (domain.BrandAccount, bool) {
	if brand != "prins" {
		return domain.BrandAccount{}, false
	}
	return domain.BrandAccount{Brand: brand, PageID: "1", MetaToken: "t"}, true
}

type postsStub struct {
	recent    int
	sinceYear int
	failures  int
	tiktokErr error
}

func (p *postsStub) SyncRecent(context.Context, domain.BrandAccount) (domain.BatchResult, error) {
	p.recent++
	if p.failures > 0 {
		p.failures--
		return domain.BatchResult{}, domain.ErrStorageUnavailable
	}
	return domain.BatchResult{Inserted: 1}, nil
}

func (p *postsStub) SyncHistory(_ context.Context, _ domain.BrandAccount, sinceYear int) (domain.BatchResult, error) {
	p.sinceYear = sinceYear
	return domain.BatchResult{}, nil
}

func (p *postsStub) SyncTikTok(context.Context, domain.BrandAccount, int) (domain.BatchResult, error) {
	return domain.BatchResult{}, p.tiktokErr
}

type followersStub struct{ calls int }

func (f *followersStub) SyncBrand(context.Context, domain.BrandAccount) error {
	f.calls++
	return nil
}

type reportsStub struct{ month, platform, brand string }

func (r *reportsStub) Generate(_ context.Context, month, platform, brand string) (domain.Report, error) {
	r.month, r.platform, r.brand = month, platform, brand
	return domain.Report{Month: month, Platform: "cross"}, nil
}

func newWorker(q *queueStub, statuses *statusStub, posts *postsStub, reports *reportsStub, fol *followersStub) *jobWorker {
	return &jobWorker{
		log:              zerolog.Nop(),
		queue:            q,
		statuses:         statuses,
		accounts:         accountsStub{},
		posts:            posts,
		followers:        fol,
		reports:          reports,
		historySinceYear: 2023,
		now:              func() time.Time { return time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC) },
		retryDelay:       time.Millisecond,
	}
}

func TestWorkerRunsEachKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &queueStub{cancel: cancel}
	q.push(domain.SyncJob{ID: "1", Kind: domain.SyncPosts, Brand: "prins"})
	q.push(domain.SyncJob{ID: "2", Kind: domain.SyncHistory, Brand: "prins"})
	q.push(domain.SyncJob{ID: "3", Kind: domain.SyncFollowers, Brand: "prins"})
	q.push(domain.SyncJob{ID: "4", Kind: domain.SyncReport})
	statuses := newStatusStub()
	posts := &postsStub{}
	reports := &reportsStub{}
	fol := &followersStub{}

	newWorker(q, statuses, posts, reports, fol).Run(ctx)

	if posts.recent != 1 || posts.sinceYear != 2023 || fol.calls != 1 {
		t.Fatalf("не все задачи выполнены: %+v, followers=%d", posts, fol.calls)
	}
	if reports.month != "2026-02" {
		t.Fatalf("отчёт по умолчанию строится за прошлый месяц, получили %q", reports.month)
	}
	for _, d := range q.all {
		if len(d.acked) != 1 || !d.acked[0] || !statuses.done[d.job.ID] {
			t.Fatalf("задача %s должна быть подтверждена и завершена: %v", d.job.ID, d.acked)
		}
	}
}

func TestWorkerRetriesTransientErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &queueStub{cancel: cancel}
	d := q.push(domain.SyncJob{ID: "1", Kind: domain.SyncPosts, Brand: "prins"})
	statuses := newStatusStub()
	posts := &postsStub{failures: 2}

	newWorker(q, statuses, posts, &reportsStub{}, &followersStub{}).Run(ctx)

	if posts.recent != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", posts.recent)
	}
	want := []bool{false, false, true}
	if len(d.acked) != len(want) {
		t.Fatalf("неожиданные подтверждения: %v", d.acked)
	}
	for i := range want {
		if d.acked[i] != want[i] {
			t.Fatalf("неожиданные подтверждения: %v", d.acked)
		}
	}
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &queueStub{cancel: cancel}
	d := q.push(domain.SyncJob{ID: "1", Kind: domain.SyncPosts, Brand: "prins"})
	statuses := newStatusStub()
	posts := &postsStub{failures: 100}

	newWorker(q, statuses, posts, &reportsStub{}, &followersStub{}).Run(ctx)

	if posts.recent != maxDeliveryAttempts {
		t.Fatalf("ожидали %d попыток, получили %d", maxDeliveryAttempts, posts.recent)
	}
	if !statuses.done["1"] || !d.acked[len(d.acked)-1] {
		t.Fatalf("после предела попыток задача должна быть закрыта")
	}
}

func TestWorkerDoesNotRetryPermanentErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &queueStub{cancel: cancel}
	unknown := q.push(domain.SyncJob{ID: "1", Kind: domain.SyncPosts, Brand: "whiskas"})
	noTikTok := q.push(domain.SyncJob{ID: "2", Kind: domain.SyncTikTok, Brand: "prins"})
	posts := &postsStub{tiktokErr: errors.Join(errors.New("tiktok"), domain.ErrAccountMissing)}

	newWorker(q, newStatusStub(), posts, &reportsStub{}, &followersStub{}).Run(ctx)

	for _, d := range []*delivery{unknown, noTikTok} {
		if len(d.acked) != 1 || !d.acked[0] {
			t.Fatalf("задача %s не должна повторяться: %v", d.job.ID, d.acked)
		}
	}
}

func TestWorkerSkipsCompletedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &queueStub{cancel: cancel}
	q.push(domain.SyncJob{ID: "1", Kind: domain.SyncPosts, Brand: "prins"})
	statuses := newStatusStub()
	statuses.done["1"] = true
	posts := &postsStub{}

	newWorker(q, statuses, posts, &reportsStub{}, &followersStub{}).Run(ctx)

	if posts.recent != 0 {
		t.Fatalf("повторная доставка выполненной задачи не должна запускать синхронизацию")
	}
}
