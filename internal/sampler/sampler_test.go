package sampler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/cache"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/datastore/testutil"
	"github.com/tphakala/parkpulse/internal/queuetimes"
)

const feedURL = "https://feed.test"

// fakeFeed serves documents from a map and tracks concurrent calls.
type fakeFeed struct {
	mu       sync.Mutex
	docs     map[int]*queuetimes.QueueTimes
	fail     map[int]error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		docs: make(map[int]*queuetimes.QueueTimes),
		fail: make(map[int]error),
	}
}

func (f *fakeFeed) set(externalID int, doc *queuetimes.QueueTimes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[externalID] = doc
}

func (f *fakeFeed) FetchQueueTimes(ctx context.Context, externalID int) (*queuetimes.QueueTimes, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[externalID]; ok {
		return nil, err
	}
	if doc, ok := f.docs[externalID]; ok {
		return doc, nil
	}
	return &queuetimes.QueueTimes{}, nil
}

func ride(id int, name string, isOpen bool, wait int, lastUpdated string) queuetimes.Ride {
	return queuetimes.Ride{ID: id, Name: name, IsOpen: &isOpen, WaitTime: &wait, LastUpdated: lastUpdated}
}

func ts(minutes int) string {
	return time.Date(2025, 6, 1, 12, minutes, 0, 0, time.UTC).Format(time.RFC3339Nano)
}

func testConfig() Config {
	return Config{BatchSize: 3, BatchDelay: time.Millisecond, PageSize: 2, LatestTTL: time.Minute}
}

func newMemoryCache(t *testing.T) *cache.Memory {
	t.Helper()
	c := cache.NewMemory(time.Minute, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(nil)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultLatestTTL, cfg.LatestTTL)

	cfg = ConfigFromSettings(&conf.SamplerSettings{BatchSize: 1})
	assert.Equal(t, conf.MinSamplerBatchSize, cfg.BatchSize)

	cfg = ConfigFromSettings(&conf.SamplerSettings{BatchSize: 50})
	assert.Equal(t, conf.MaxSamplerBatchSize, cfg.BatchSize)
}

func TestSampleAll_ThroughFeedClient(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(6, "Magic Kingdom")

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, feedURL+"/parks/6/queue_times.json",
		httpmock.NewStringResponder(http.StatusOK, fmt.Sprintf(`{
  "lands": [{"id": 53, "name": "Adventureland", "rides": [
    {"id": 130, "name": "Jungle Cruise", "is_open": true, "wait_time": 45, "last_updated": %q},
    {"id": 131, "name": "Pirates", "is_open": true, "wait_time": 30, "last_updated": %q}
  ]}],
  "rides": [{"id": 140, "name": "Railroad", "is_open": false, "wait_time": 0, "last_updated": %q}]
}`, ts(5), ts(5), ts(5))))

	client := queuetimes.NewClient(queuetimes.Config{
		BaseURL: feedURL, RateLimit: 1000, Burst: 100, MaxRetries: 1,
	}, queuetimes.WithTransport(mt))
	mem := newMemoryCache(t)

	s := New(testConfig(), client, store.CatalogRepo, store.SampleRepo, WithCache(mem))

	res, err := s.SampleAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewSamples)
	assert.Zero(t, res.SkippedDuplicates)
	assert.Zero(t, res.ParksFailed)
	assert.Empty(t, res.Errors)

	// same document again: every sample is a duplicate
	res, err = s.SampleAll(t.Context())
	require.NoError(t, err)
	assert.Zero(t, res.NewSamples)
	assert.Equal(t, 3, res.SkippedDuplicates)
	assert.Equal(t, int64(3), store.CountSamples())

	areas, err := store.CatalogRepo.ListThemeAreas(t.Context(), park.ID)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, "Adventureland", areas[0].Name)

	rides, err := store.CatalogRepo.ListRides(t.Context(), park.ID)
	require.NoError(t, err)
	require.Len(t, rides, 3)
	for _, r := range rides {
		assert.True(t, r.IsActive)
		if r.ExternalID == 140 {
			assert.Nil(t, r.ThemeAreaID, "top-level rides have no area")
		} else {
			require.NotNil(t, r.ThemeAreaID)
			assert.Equal(t, areas[0].ID, *r.ThemeAreaID)
		}
	}

	var latest cache.LatestSample
	for _, r := range rides {
		found, err := cache.GetJSON(t.Context(), mem, cache.LatestRideKey(r.ID), &latest)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, r.ID, latest.RideID)
	}
}

func TestSampleAll_IsolatesFailingParks(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	feed := newFakeFeed()
	for i := 1; i <= 4; i++ {
		store.SeedPark(i, fmt.Sprintf("Park %d", i))
		feed.set(i, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
			ride(100+i, "Coaster", true, 10*i, ts(i)),
		}})
	}
	feed.fail[3] = fmt.Errorf("feed unavailable")

	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo)
	res, err := s.SampleAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParksFailed)
	assert.Equal(t, 3, res.ParksSampled)
	assert.Equal(t, 3, res.NewSamples)
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0], "feed unavailable")
	assert.Equal(t, int32(4), feed.calls.Load())
}

func TestSampleAll_RespectsBatchSize(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	feed := newFakeFeed()
	feed.delay = 20 * time.Millisecond
	for i := 1; i <= 10; i++ {
		store.SeedPark(i, fmt.Sprintf("Park %d", i))
	}

	cfg := testConfig()
	cfg.PageSize = 4
	s := New(cfg, feed, store.CatalogRepo, store.SampleRepo)

	_, err := s.SampleAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(10), feed.calls.Load())
	assert.LessOrEqual(t, feed.maxSeen.Load(), int32(cfg.BatchSize))
	assert.Positive(t, feed.maxSeen.Load())
}

func TestSamplePark_SkipsInvalidTimestampsAndClampsWait(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")
	feed := newFakeFeed()
	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "No time", true, 15, ""),
		ride(2, "Bad time", true, 15, "soon"),
		ride(3, "Negative", true, -5, ts(1)),
	}})

	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo)
	res := s.SamplePark(t.Context(), park)
	assert.False(t, res.Failed)
	assert.Equal(t, 1, res.NewSamples)

	var sample entities.QueueTimeSample
	require.NoError(t, store.DB.First(&sample).Error)
	assert.Equal(t, 0, sample.WaitTime)

	// rides without a usable timestamp are still catalogued
	rides, err := store.CatalogRepo.ListRides(t.Context(), park.ID)
	require.NoError(t, err)
	assert.Len(t, rides, 3)
}

func TestSamplePark_SkipsNullStatusFields(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")

	var doc queuetimes.QueueTimes
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(`{"rides": [
  {"id": 7, "name": "Null wait", "is_open": true, "wait_time": null, "last_updated": %q},
  {"id": 8, "name": "Null open", "is_open": null, "wait_time": 20, "last_updated": %q},
  {"id": 9, "name": "Missing both", "last_updated": %q},
  {"id": 10, "name": "Complete", "is_open": true, "wait_time": 40, "last_updated": %q}
]}`, ts(1), ts(1), ts(1), ts(1))), &doc))

	feed := newFakeFeed()
	feed.set(1, &doc)
	mem := newMemoryCache(t)

	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo, WithCache(mem))
	res := s.SamplePark(t.Context(), park)
	assert.False(t, res.Failed)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.NewSamples)
	assert.Equal(t, int64(1), store.CountSamples())
	assert.Equal(t, 1, mem.Len(), "only the complete ride is projected")

	var sample entities.QueueTimeSample
	require.NoError(t, store.DB.First(&sample).Error)
	assert.Equal(t, 40, sample.WaitTime)

	// rides with incomplete status stay catalogued and active
	active, err := store.CatalogRepo.ActiveRideIDs(t.Context(), park.ID)
	require.NoError(t, err)
	assert.Len(t, active, 4)
}

// failingRideUpserts fails UpsertRide for the listed external ids.
type failingRideUpserts struct {
	repository.CatalogRepository
	fail map[int]bool
}

func (f *failingRideUpserts) UpsertRide(ctx context.Context, r *entities.Ride) (*entities.Ride, error) {
	if f.fail[r.ExternalID] {
		return nil, fmt.Errorf("database is locked")
	}
	return f.CatalogRepository.UpsertRide(ctx, r)
}

func TestSamplePark_FailedRideUpsertDoesNotDeactivate(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")
	feed := newFakeFeed()
	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "Coaster", true, 5, ts(1)),
		ride(2, "Carousel", true, 5, ts(1)),
	}})
	require.False(t, New(testConfig(), feed, store.CatalogRepo, store.SampleRepo).SamplePark(t.Context(), park).Failed)

	// the rename forces an upsert of ride 1, which fails
	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "Coaster Reimagined", true, 10, ts(2)),
		ride(2, "Carousel", true, 10, ts(2)),
	}})
	catalog := &failingRideUpserts{CatalogRepository: store.CatalogRepo, fail: map[int]bool{1: true}}
	res := New(testConfig(), feed, catalog, store.SampleRepo).SamplePark(t.Context(), park)

	assert.False(t, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0], "database is locked")
	assert.Zero(t, res.RidesDeactivated)

	active, err := store.CatalogRepo.ActiveRideIDs(t.Context(), park.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSamplePark_DeactivatesMissingRides(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")
	feed := newFakeFeed()
	both := &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "Stays", true, 5, ts(1)),
		ride(2, "Leaves", true, 5, ts(1)),
	}}
	feed.set(1, both)

	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo)
	require.False(t, s.SamplePark(t.Context(), park).Failed)

	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "Stays", true, 10, ts(2)),
	}})
	res := s.SamplePark(t.Context(), park)
	assert.Equal(t, int64(1), res.RidesDeactivated)

	active, err := store.CatalogRepo.ActiveRideIDs(t.Context(), park.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// an empty document leaves the catalog alone
	feed.set(1, &queuetimes.QueueTimes{})
	res = s.SamplePark(t.Context(), park)
	assert.Zero(t, res.RidesDeactivated)

	// the ride coming back reactivates it
	feed.set(1, both)
	s.SamplePark(t.Context(), park)
	active, err = store.CatalogRepo.ActiveRideIDs(t.Context(), park.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSamplePark_LatestCachedOnlyForInserted(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")
	feed := newFakeFeed()
	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{
		ride(1, "Coaster", true, 25, ts(1)),
	}})
	mem := newMemoryCache(t)

	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo, WithCache(mem))
	require.Equal(t, 1, s.SamplePark(t.Context(), park).NewSamples)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, mem.Clear(t.Context()))
	res := s.SamplePark(t.Context(), park)
	assert.Equal(t, 1, res.SkippedDuplicates)
	assert.Zero(t, mem.Len())
}

func TestSamplePark_LatestKeepsNewerProjection(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	park := store.SeedPark(1, "Park")
	feed := newFakeFeed()
	mem := newMemoryCache(t)
	s := New(testConfig(), feed, store.CatalogRepo, store.SampleRepo, WithCache(mem))

	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{ride(1, "Coaster", true, 30, ts(10))}})
	require.Equal(t, 1, s.SamplePark(t.Context(), park).NewSamples)

	// an older observation replayed by the feed is stored but not projected
	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{ride(1, "Coaster", true, 55, ts(5))}})
	require.Equal(t, 1, s.SamplePark(t.Context(), park).NewSamples)

	rides, err := store.CatalogRepo.ListRides(t.Context(), park.ID)
	require.NoError(t, err)
	require.Len(t, rides, 1)

	var latest cache.LatestSample
	found, err := cache.GetJSON(t.Context(), mem, cache.LatestRideKey(rides[0].ID), &latest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 30, latest.WaitTime)

	feed.set(1, &queuetimes.QueueTimes{Rides: []queuetimes.Ride{ride(1, "Coaster", true, 20, ts(15))}})
	require.Equal(t, 1, s.SamplePark(t.Context(), park).NewSamples)
	found, err = cache.GetJSON(t.Context(), mem, cache.LatestRideKey(rides[0].ID), &latest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, latest.WaitTime)
}

func TestSampleAll_ListFailure(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	store.SeedPark(1, "Park")
	require.NoError(t, store.Store.Close())

	s := New(testConfig(), newFakeFeed(), store.CatalogRepo, store.SampleRepo)
	_, err := s.SampleAll(t.Context())
	require.Error(t, err)
}

func TestSampleAll_ContextCanceled(t *testing.T) {
	t.Parallel()

	store := testutil.SetupTestStore(t)
	for i := 1; i <= 6; i++ {
		store.SeedPark(i, "Park")
	}
	feed := newFakeFeed()

	cfg := testConfig()
	cfg.BatchDelay = time.Hour
	s := New(cfg, feed, store.CatalogRepo, store.SampleRepo)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := s.SampleAll(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	// only the first batch ran before the delay was interrupted
	assert.Equal(t, 3, res.ParksSampled)
}
