package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"motelhub/internal/advertisement"
	"motelhub/pkg/db"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	conn, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(conn, zap.NewNop()).WithClock(clock.Now)
	return svc, clock
}

func cap64(v int64) *int64 { return &v }

func createAd(t *testing.T, svc *Service, clock *testClock, in CreateInput) *advertisement.Advertisement {
	t.Helper()
	if in.Title == "" {
		in.Title = "Motel Sunrise"
	}
	if in.Placement == "" {
		in.Placement = advertisement.PlacementHomePopup
	}
	ad, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	// distinct created_at for ordering assertions
	clock.Advance(time.Second)
	return ad
}

func ids(ads []advertisement.Advertisement) []int64 {
	out := make([]int64, 0, len(ads))
	for _, ad := range ads {
		out = append(out, ad.ID)
	}
	return out
}

// =============================================================================
// TrackEvent
// =============================================================================

func TestTrackEvent_AutoPausesAtViewCap(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{MaxViews: cap64(2)})

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{Device: "mobile"})
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.False(t, res.Paused)
	assert.Equal(t, advertisement.StatusActive, res.Advertisement.Status)
	assert.Equal(t, int64(1), res.Advertisement.ViewCount)

	res, err = svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	assert.True(t, res.Counted)
	assert.True(t, res.Paused)
	assert.Equal(t, advertisement.StatusPaused, res.Advertisement.Status)
	assert.Equal(t, int64(2), res.Advertisement.ViewCount)

	// a third view still resolves the ad but never moves the counter past the cap
	res, err = svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.False(t, res.Paused)
	assert.Equal(t, int64(2), res.Advertisement.ViewCount)

	stored, err := svc.Get(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusPaused, stored.Status)
	assert.Equal(t, int64(2), stored.ViewCount)

	active, err := svc.ListActive(ctx, advertisement.PlacementHomePopup, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, active)

	// every call is still in the event log
	stats, err := svc.Stats(ctx, ad.ID, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ViewEvents)
}

func TestTrackEvent_AutoPausesAtClickCap(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{MaxViews: cap64(100), MaxClicks: cap64(1)})

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	assert.False(t, res.Paused)

	res, err = svc.TrackEvent(ctx, ad.ID, advertisement.EventClick, advertisement.Tags{Source: "home"})
	require.NoError(t, err)
	assert.True(t, res.Paused)
	assert.Equal(t, int64(1), res.Advertisement.ClickCount)
	assert.Equal(t, int64(1), res.Advertisement.ViewCount)
}

func TestTrackEvent_NoCapsNeverPauses(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{})

	for i := 0; i < 10; i++ {
		res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
		require.NoError(t, err)
		assert.False(t, res.Paused)
	}

	stored, err := svc.Get(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusActive, stored.Status)
	assert.Equal(t, int64(10), stored.ViewCount)
}

func TestTrackEvent_ManuallyPausedDoesNotCount(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{Status: advertisement.StatusPaused})

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventClick, advertisement.Tags{})
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.Equal(t, int64(0), res.Advertisement.ClickCount)
	assert.Equal(t, advertisement.StatusPaused, res.Advertisement.Status)
}

func TestTrackEvent_ActiveAtCapDoesNotCount(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{MaxViews: cap64(5)})

	// ACTIVE объявление, чей лимит уменьшили напрямую в базе
	_, err := svc.DB.Exec(svc.DB.Rebind(`UPDATE advertisements SET max_views = 0 WHERE id = ?`), ad.ID)
	require.NoError(t, err)

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.True(t, res.Paused)
	assert.Equal(t, int64(0), res.Advertisement.ViewCount)
	assert.Equal(t, advertisement.StatusPaused, res.Advertisement.Status)
}

func TestTrackEvent_ConcurrentCallsRespectCap(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	capped := createAd(t, svc, clock, CreateInput{MaxViews: cap64(10)})
	open := createAd(t, svc, clock, CreateInput{})

	const calls = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*calls)
	var mu sync.Mutex
	paused := 0
	for i := 0; i < calls; i++ {
		for _, id := range []int64{capped.ID, open.ID} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				res, err := svc.TrackEvent(ctx, id, advertisement.EventView, advertisement.Tags{})
				if err == nil && res.Paused {
					mu.Lock()
					paused++
					mu.Unlock()
				}
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := svc.Get(ctx, capped.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.ViewCount)
	assert.Equal(t, advertisement.StatusPaused, stored.Status)
	assert.Equal(t, 1, paused, "exactly one call pauses the ad")

	stored, err = svc.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(calls), stored.ViewCount)
	assert.Equal(t, advertisement.StatusActive, stored.Status)

	stats, err := svc.Stats(ctx, capped.ID, clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(calls), stats.ViewEvents)
}

func TestTrackEvent_NotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.TrackEvent(context.Background(), 999, advertisement.EventView, advertisement.Tags{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackEvent_InvalidInput(t *testing.T) {
	svc, clock := setupTestService(t)
	ad := createAd(t, svc, clock, CreateInput{})

	_, err := svc.TrackEvent(context.Background(), ad.ID, advertisement.EventType("HOVER"), advertisement.Tags{})
	assert.ErrorIs(t, err, ErrInvalidEventType)

	long := make([]byte, maxTagLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.TrackEvent(context.Background(), ad.ID, advertisement.EventView, advertisement.Tags{Location: string(long)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrackAsync(t *testing.T) {
	svc, clock := setupTestService(t)
	ad := createAd(t, svc, clock, CreateInput{})

	ctx, cancel := context.WithCancel(context.Background())
	done := svc.TrackAsync(ctx, ad.ID, advertisement.EventClick, advertisement.Tags{})
	// the caller's request finishing must not abort tracking
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("async tracking did not finish")
	}

	stored, err := svc.Get(context.Background(), ad.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)
}

func TestTrackAsync_FailureIsAbsorbed(t *testing.T) {
	svc, _ := setupTestService(t)

	done := svc.TrackAsync(context.Background(), 12345, advertisement.EventView, advertisement.Tags{})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("async tracking did not finish")
	}
}

// =============================================================================
// ListActive
// =============================================================================

func TestListActive_OrderAndFilters(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()

	past := clock.Now().Add(-24 * time.Hour)
	future := clock.Now().Add(24 * time.Hour)
	farFuture := clock.Now().Add(48 * time.Hour)

	low := createAd(t, svc, clock, CreateInput{Priority: 1})
	highOld := createAd(t, svc, clock, CreateInput{Priority: 5})
	highNew := createAd(t, svc, clock, CreateInput{Priority: 5})
	windowed := createAd(t, svc, clock, CreateInput{Priority: 3, StartDate: &past, EndDate: &farFuture})
	createAd(t, svc, clock, CreateInput{Priority: 9, StartDate: &future})
	createAd(t, svc, clock, CreateInput{Priority: 9, EndDate: &past})
	createAd(t, svc, clock, CreateInput{Priority: 9, Status: advertisement.StatusPaused})
	createAd(t, svc, clock, CreateInput{Priority: 9, Placement: advertisement.PlacementHomeBanner})

	active, err := svc.ListActive(ctx, advertisement.PlacementHomePopup, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{highNew.ID, highOld.ID, windowed.ID, low.ID}, ids(active))
}

func TestListActive_ExcludesAdsAtCapStillMarkedActive(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	atCap := createAd(t, svc, clock, CreateInput{MaxViews: cap64(3)})
	clicksAtCap := createAd(t, svc, clock, CreateInput{MaxClicks: cap64(1)})
	fine := createAd(t, svc, clock, CreateInput{MaxViews: cap64(3)})

	// simulate a counter write that landed without its pause
	_, err := svc.DB.Exec(svc.DB.Rebind(`UPDATE advertisements SET view_count = 3 WHERE id = ?`), atCap.ID)
	require.NoError(t, err)
	_, err = svc.DB.Exec(svc.DB.Rebind(`UPDATE advertisements SET click_count = 5 WHERE id = ?`), clicksAtCap.ID)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx, advertisement.PlacementHomePopup, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{fine.ID}, ids(active))
}

func TestListActive_InvalidPlacement(t *testing.T) {
	svc, clock := setupTestService(t)

	_, err := svc.ListActive(context.Background(), advertisement.Placement("FOOTER"), clock.Now())
	assert.ErrorIs(t, err, ErrInvalidPlacement)
}

func TestListActive_Empty(t *testing.T) {
	svc, clock := setupTestService(t)

	active, err := svc.ListActive(context.Background(), advertisement.PlacementDetailSidebar, clock.Now())
	require.NoError(t, err)
	assert.NotNil(t, active)
	assert.Empty(t, active)
}

// =============================================================================
// Operator operations
// =============================================================================

func TestCreate_Validation(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	start := clock.Now()
	end := start.Add(-time.Hour)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"missing title", CreateInput{Placement: advertisement.PlacementHomePopup}, ErrInvalidInput},
		{"bad placement", CreateInput{Title: "x", Placement: "FOOTER"}, ErrInvalidPlacement},
		{"bad status", CreateInput{Title: "x", Placement: advertisement.PlacementHomePopup, Status: "DRAFT"}, ErrInvalidStatus},
		{"inverted window", CreateInput{Title: "x", Placement: advertisement.PlacementHomePopup, StartDate: &start, EndDate: &end}, ErrInvalidInput},
		{"negative cap", CreateInput{Title: "x", Placement: advertisement.PlacementHomePopup, MaxClicks: cap64(-1)}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, clock := setupTestService(t)

	ad := createAd(t, svc, clock, CreateInput{})
	assert.NotZero(t, ad.ID)
	assert.Equal(t, advertisement.StatusActive, ad.Status)

	stored, err := svc.Get(context.Background(), ad.ID)
	require.NoError(t, err)
	assert.Equal(t, ad.Title, stored.Title)
	assert.Nil(t, stored.MaxViews)
	assert.True(t, stored.CreatedAt.Equal(ad.CreatedAt))
}

func TestCreate_ZeroCapStartsPaused(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()

	ad := createAd(t, svc, clock, CreateInput{MaxViews: cap64(0)})
	assert.Equal(t, advertisement.StatusPaused, ad.Status)

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.Equal(t, int64(0), res.Advertisement.ViewCount)

	_, err = svc.SetStatus(ctx, ad.ID, advertisement.StatusActive)
	assert.ErrorIs(t, err, ErrCapReached)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Get(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSetStatus(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{MaxViews: cap64(1)})

	paused, err := svc.SetStatus(ctx, ad.ID, advertisement.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusPaused, paused.Status)

	resumed, err := svc.SetStatus(ctx, ad.ID, advertisement.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusActive, resumed.Status)

	res, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
	require.NoError(t, err)
	require.True(t, res.Paused)

	_, err = svc.SetStatus(ctx, ad.ID, advertisement.StatusActive)
	assert.ErrorIs(t, err, ErrCapReached)

	_, err = svc.SetStatus(ctx, ad.ID, advertisement.Status("ARCHIVED"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, 777, advertisement.StatusPaused)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	svc, clock := setupTestService(t)
	ctx := context.Background()
	ad := createAd(t, svc, clock, CreateInput{})
	since := clock.Now()

	for i := 0; i < 3; i++ {
		_, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventView, advertisement.Tags{})
		require.NoError(t, err)
	}
	_, err := svc.TrackEvent(ctx, ad.ID, advertisement.EventClick, advertisement.Tags{})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, ad.ID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ViewCount)
	assert.Equal(t, int64(1), stats.ClickCount)
	assert.Equal(t, int64(3), stats.ViewEvents)
	assert.Equal(t, int64(1), stats.ClickEvents)
	assert.Equal(t, "0.3333", stats.CTR)

	later, err := svc.Stats(ctx, ad.ID, since.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, later.ViewEvents)
	assert.Equal(t, int64(3), later.ViewCount)
}

func TestClickThroughRate(t *testing.T) {
	assert.Equal(t, "0", clickThroughRate(0, 0))
	assert.Equal(t, "0.5", clickThroughRate(1, 2))
	assert.Equal(t, "1", clickThroughRate(4, 4))
}
