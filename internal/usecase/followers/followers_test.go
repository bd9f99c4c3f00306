package followers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/cache"
)

type snapKey struct {
	platform domain.Platform
	brand    string
	month    string
}

type repoStub struct {
	snaps     map[snapKey]int64
	gets      int
	prevCalls int
	err       error
	// afterGet вызывается после чтения значения, до возврата из GetFollowerCount.
	afterGet func()
}

func newRepoStub() *repoStub {
	return &repoStub{snaps: make(map[snapKey]int64)}
}

func (r *repoStub) UpsertFollowerSnapshot(_ context.Context, snap domain.FollowerSnapshot) error {
	if r.err != nil {
		return r.err
	}
	r.snaps[snapKey{snap.Platform, snap.Brand, snap.Month}] = snap.Followers
	return nil
}

func (r *repoStub) GetFollowerCount(_ context.Context, p domain.Platform, brand, month string) (int64, bool, error) {
	r.gets++
	if r.err != nil {
		return 0, false, r.err
	}
	n, ok := r.snaps[snapKey{p, brand, month}]
	if r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook()
	}
	return n, ok, nil
}

func (r *repoStub) GetFollowerBefore(_ context.Context, p domain.Platform, brand, month string) (domain.FollowerSnapshot, bool, error) {
	r.prevCalls++
	best := domain.FollowerSnapshot{}
	found := false
	for k, v := range r.snaps {
		if k.platform != p || k.brand != brand || k.month >= month {
			continue
		}
		if !found || k.month > best.Month {
			best = domain.FollowerSnapshot{Platform: p, Brand: brand, Month: k.month, Followers: v}
			found = true
		}
	}
	return best, found, nil
}

func (r *repoStub) ListFollowerSnapshots(context.Context, domain.Platform, string) ([]domain.FollowerSnapshot, error) {
	return nil, nil
}

func newLedger(repo *repoStub) *Ledger {
	l := NewLedger(repo, cache.NewMemory(), time.Minute, zerolog.Nop())
	l.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestLedgerRecordDefaultsToCurrentMonth(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	ctx := context.Background()

	if err := l.Record(ctx, domain.PlatformInstagram, "prins", 1200, ""); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.snaps[snapKey{domain.PlatformInstagram, "prins", "2026-03"}] != 1200 {
		t.Fatalf("снимок должен попасть в текущий месяц: %+v", repo.snaps)
	}
}

func TestLedgerLookupIsCachedAndInvalidated(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	ctx := context.Background()

	if _, ok, err := l.Lookup(ctx, domain.PlatformFacebook, "prins", "2026-02"); err != nil || ok {
		t.Fatalf("ожидали отсутствие снимка, получили ok=%v err=%v", ok, err)
	}
	if _, _, err := l.Lookup(ctx, domain.PlatformFacebook, "prins", "2026-02"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.gets != 1 {
		t.Fatalf("повторное чтение должно прийти из кэша, обращений к БД: %d", repo.gets)
	}

	if err := l.Record(ctx, domain.PlatformFacebook, "prins", 500, "2026-02"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	n, ok, err := l.Lookup(ctx, domain.PlatformFacebook, "prins", "2026-02")
	if err != nil || !ok || n != 500 {
		t.Fatalf("после записи ожидали 500, получили %d ok=%v err=%v", n, ok, err)
	}
}

func TestLedgerRecordDuringLoadDoesNotLeaveStaleCache(t *testing.T) {
	repo := newRepoStub()
	repo.snaps[snapKey{domain.PlatformFacebook, "prins", "2026-02"}] = 400
	l := newLedger(repo)
	ctx := context.Background()

	repo.afterGet = func() {
		if err := l.Record(ctx, domain.PlatformFacebook, "prins", 500, "2026-02"); err != nil {
			t.Errorf("не ожидали ошибку: %v", err)
		}
	}
	if n, _, err := l.Lookup(ctx, domain.PlatformFacebook, "prins", "2026-02"); err != nil || n != 400 {
		t.Fatalf("первое чтение видит значение до записи, получили %d, %v", n, err)
	}
	n, ok, err := l.Lookup(ctx, domain.PlatformFacebook, "prins", "2026-02")
	if err != nil || !ok || n != 500 {
		t.Fatalf("после записи ожидали 500, получили %d ok=%v err=%v", n, ok, err)
	}
}

func TestLedgerNormalizesBrand(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	ctx := context.Background()

	if err := l.Record(ctx, domain.PlatformFacebook, " Prins ", 1000, "2026-02"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := repo.snaps[snapKey{domain.PlatformFacebook, "prins", "2026-02"}]; !ok {
		t.Fatalf("бренд должен храниться в нижнем регистре: %+v", repo.snaps)
	}
	n, ok, err := l.Lookup(ctx, domain.PlatformFacebook, "PRINS", "2026-02")
	if err != nil || !ok || n != 1000 {
		t.Fatalf("ожидали 1000 для PRINS, получили %d ok=%v err=%v", n, ok, err)
	}
}

func TestLedgerPreviousMonthSkipsGaps(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	ctx := context.Background()

	for month, n := range map[string]int64{"2025-12": 900, "2026-03": 1000} {
		if err := l.Record(ctx, domain.PlatformInstagram, "prins", n, month); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	snap, ok, err := l.LookupPreviousMonth(ctx, domain.PlatformInstagram, "prins")
	if err != nil || !ok {
		t.Fatalf("ожидали снимок, ok=%v err=%v", ok, err)
	}
	if snap.Month != "2025-12" || snap.Followers != 900 {
		t.Fatalf("неожиданный снимок: %+v", snap)
	}

	if err := l.Record(ctx, domain.PlatformInstagram, "prins", 950, "2026-02"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	snap, _, _ = l.LookupPreviousMonth(ctx, domain.PlatformInstagram, "prins")
	if snap.Month != "2026-02" {
		t.Fatalf("кэш предыдущего месяца должен сброситься, получили %+v", snap)
	}
}

func TestLedgerRejectsInvalidInput(t *testing.T) {
	l := newLedger(newRepoStub())
	ctx := context.Background()
	if err := l.Record(ctx, "myspace", "prins", 1, ""); !errors.Is(err, domain.ErrInvalidPlatform) {
		t.Fatalf("ожидали ErrInvalidPlatform, получили %v", err)
	}
	if err := l.Record(ctx, domain.PlatformFacebook, "prins", 1, "2026/03"); !errors.Is(err, domain.ErrInvalidMonth) {
		t.Fatalf("ожидали ErrInvalidMonth, получили %v", err)
	}
	if err := l.Record(ctx, domain.PlatformFacebook, "prins", -5, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ошибку для отрицательного значения")
	}
}

func TestLedgerPropagatesStorageErrors(t *testing.T) {
	repo := newRepoStub()
	repo.err = domain.ErrStorageUnavailable
	l := newLedger(repo)
	if _, _, err := l.Lookup(context.Background(), domain.PlatformFacebook, "prins", "2026-03"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
}

func TestBackfillFromDeltas(t *testing.T) {
	deltas := []domain.DailyValue{
		{EndTime: "2026-03-02T08:00:00+0000", Value: 10},
		{EndTime: "2026-03-03T08:00:00+0000", Value: 5},
		{EndTime: "2026-02-10T08:00:00+0000", Value: 20},
		{EndTime: "2026-01-10T08:00:00+0000", Value: 30},
	}
	got := BackfillFromDeltas(1000, "2026-03", deltas)
	want := []domain.FollowerSnapshot{
		{Platform: domain.PlatformInstagram, Month: "2026-02", Followers: 985},
		{Platform: domain.PlatformInstagram, Month: "2026-01", Followers: 965},
	}
	if len(got) != len(want) {
		t.Fatalf("ожидали %d снимков, получили %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("снимок %d: ожидали %+v, получили %+v", i, want[i], got[i])
		}
	}
}

type metaStub struct {
	domain.MetaSource
	daily  []domain.DailyValue
	ig     domain.InstagramAccount
	igErr  error
	deltas []domain.DailyValue
}

func (m *metaStub) FacebookDailyFollows(context.Context, domain.BrandAccount, time.Time, time.Time) ([]domain.DailyValue, error) {
	return m.daily, nil
}

func (m *metaStub) InstagramAccount(context.Context, domain.BrandAccount) (domain.InstagramAccount, error) {
	return m.ig, m.igErr
}

func (m *metaStub) InstagramFollowerDeltas(context.Context, domain.BrandAccount, string) ([]domain.DailyValue, error) {
	return m.deltas, nil
}

type tiktokStub struct {
	domain.TikTokSource
	count int64
	err   error
}

func (s tiktokStub) FollowerCount(context.Context, string) (int64, error) { return s.count, s.err }

func TestSyncerSyncBrand(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	meta := &metaStub{
		daily: []domain.DailyValue{
			{EndTime: "2026-02-27T08:00:00+0000", Value: 400},
			{EndTime: "2026-02-28T08:00:00+0000", Value: 410},
			{EndTime: "2026-03-14T08:00:00+0000", Value: 420},
		},
		ig:     domain.InstagramAccount{ID: "ig1", Followers: 1000},
		deltas: []domain.DailyValue{{EndTime: "2026-02-10T08:00:00+0000", Value: 20}},
	}
	s := NewSyncer(l, meta, tiktokStub{count: 77}, nil, zerolog.Nop())
	s.now = l.now

	acc := domain.BrandAccount{Brand: "prins", PageID: "p1", MetaToken: "t", TikTokToken: "tt"}
	if err := s.SyncBrand(context.Background(), acc); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	checks := map[snapKey]int64{
		{domain.PlatformFacebook, "prins", "2026-02"}:  410,
		{domain.PlatformFacebook, "prins", "2026-03"}:  420,
		{domain.PlatformInstagram, "prins", "2026-03"}: 1000,
		{domain.PlatformInstagram, "prins", "2026-02"}: 1000,
		{domain.PlatformTikTok, "prins", "2026-03"}:    77,
	}
	for key, want := range checks {
		if got := repo.snaps[key]; got != want {
			t.Fatalf("%+v: ожидали %d, получили %d", key, want, got)
		}
	}
}

func TestSyncerJoinsErrorsAndSkipsMissingAccount(t *testing.T) {
	repo := newRepoStub()
	l := newLedger(repo)
	boom := errors.New("tiktok down")
	s := NewSyncer(l, &metaStub{}, tiktokStub{err: boom}, nil, zerolog.Nop())

	err := s.SyncBrand(context.Background(), domain.BrandAccount{Brand: "edupet", TikTokToken: "tt"})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку tiktok, получили %v", err)
	}
	if len(repo.snaps) != 0 {
		t.Fatalf("без meta-аккаунта снимков быть не должно: %+v", repo.snaps)
	}
}
