package catalog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/testutil"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"github.com/tphakala/parkpulse/internal/queuetimes"
)

const feedURL = "https://feed.test"

const parksDoc = `[
  {"id": 1, "name": "Merlin Entertainments", "parks": [
    {"id": 1, "name": "Alton Towers", "country": "England", "continent": "Europe",
     "latitude": "52.987", "longitude": "-1.886", "timezone": "Europe/London"},
    {"id": 2, "name": "Thorpe Park", "country": "England", "continent": "Europe",
     "latitude": 51.404, "longitude": -0.514, "timezone": "Europe/London"}
  ]},
  {"id": 2, "name": "Linnanmäki", "parks": [
    {"id": 40, "name": "Linnanmäki", "country": "Finland", "continent": "Europe",
     "latitude": "60.1875", "longitude": "24.9402", "timezone": "Europe/Helsinki"}
  ]}
]`

const parksDocRenamed = `[
  {"id": 1, "name": "Merlin Entertainments Group", "parks": [
    {"id": 1, "name": "Alton Towers Resort", "country": "England", "continent": "Europe",
     "latitude": "52.987", "longitude": "-1.886", "timezone": "Europe/London"},
    {"id": 2, "name": "Thorpe Park", "country": "England", "continent": "Europe",
     "latitude": 51.404, "longitude": -0.514, "timezone": "Europe/London"}
  ]},
  {"id": 2, "name": "Linnanmäki", "parks": [
    {"id": 40, "name": "Linnanmäki", "country": "Finland", "continent": "Europe",
     "latitude": "60.1875", "longitude": "24.9402", "timezone": "Europe/Helsinki"}
  ]}
]`

func newFeed(t *testing.T, mt *httpmock.MockTransport) *queuetimes.Client {
	t.Helper()
	return queuetimes.NewClient(queuetimes.Config{
		BaseURL:    feedURL,
		RateLimit:  1000,
		Burst:      100,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, queuetimes.WithTransport(mt))
}

func TestSyncCatalog_InitialAndIdempotent(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, feedURL+"/parks.json",
		httpmock.NewStringResponder(http.StatusOK, parksDoc))

	reg := prometheus.NewRegistry()
	m, err := metrics.NewIngestMetrics(reg)
	require.NoError(t, err)

	s := NewSynchronizer(newFeed(t, mt), ts.CatalogRepo, WithBatchSize(2), WithMetrics(m))

	groups, parks, err := s.SyncCatalog(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, groups)
	assert.Equal(t, 3, parks)

	// unchanged document writes nothing
	groups, parks, err = s.SyncCatalog(t.Context())
	require.NoError(t, err)
	assert.Zero(t, groups)
	assert.Zero(t, parks)

	counts, err := ts.CatalogRepo.CountRows(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Groups)
	assert.Equal(t, int64(3), counts.Parks)

	park, err := ts.CatalogRepo.GetParkByExternalID(t.Context(), 40)
	require.NoError(t, err)
	assert.Equal(t, "Linnanmäki", park.Name)
	assert.InDelta(t, 60.1875, park.Latitude, 1e-9)
	require.NotNil(t, park.GroupID)

	var group entities.ParkGroup
	require.NoError(t, ts.DB.First(&group, *park.GroupID).Error)
	assert.Equal(t, 2, group.ExternalID)
}

func TestSyncCatalog_WritesOnlyChangedRows(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, feedURL+"/parks.json",
		httpmock.ResponderFromMultipleResponses([]*http.Response{
			httpmock.NewStringResponse(http.StatusOK, parksDoc),
			httpmock.NewStringResponse(http.StatusOK, parksDocRenamed),
		}))

	s := NewSynchronizer(newFeed(t, mt), ts.CatalogRepo)

	_, _, err := s.SyncCatalog(t.Context())
	require.NoError(t, err)

	groups, parks, err := s.SyncCatalog(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, parks)

	park, err := ts.CatalogRepo.GetParkByExternalID(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alton Towers Resort", park.Name)
}

func TestSyncCatalog_UpstreamFailure(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, feedURL+"/parks.json",
		httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))

	s := NewSynchronizer(newFeed(t, mt), ts.CatalogRepo)

	groups, parks, err := s.SyncCatalog(t.Context())
	require.Error(t, err)
	assert.Zero(t, groups)
	assert.Zero(t, parks)

	counts, err := ts.CatalogRepo.CountRows(t.Context())
	require.NoError(t, err)
	assert.Zero(t, counts.Groups)
	assert.Zero(t, counts.Parks)
}

func TestSyncCatalog_MalformedDocument(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, feedURL+"/parks.json",
		httpmock.NewStringResponder(http.StatusOK, `{"not": "a list"}`))

	s := NewSynchronizer(newFeed(t, mt), ts.CatalogRepo)

	_, _, err := s.SyncCatalog(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

type stubSource struct {
	groups []queuetimes.ParkGroup
}

func (s stubSource) FetchParks(context.Context) ([]queuetimes.ParkGroup, error) {
	return s.groups, nil
}

func TestSyncCatalog_DuplicateIDsInDocument(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	src := stubSource{groups: []queuetimes.ParkGroup{
		{ID: 5, Name: "First", Parks: []queuetimes.Park{{ID: 9, Name: "Nine"}}},
		{ID: 5, Name: "Again", Parks: []queuetimes.Park{{ID: 9, Name: "Nine again"}, {ID: 10, Name: "Ten"}}},
	}}

	s := NewSynchronizer(src, ts.CatalogRepo)
	groups, parks, err := s.SyncCatalog(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 2, parks)

	park, err := ts.CatalogRepo.GetParkByExternalID(t.Context(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Nine", park.Name)
}

func TestSyncCatalog_EmptyDocument(t *testing.T) {
	t.Parallel()

	ts := testutil.SetupTestStore(t)
	s := NewSynchronizer(stubSource{}, ts.CatalogRepo)

	groups, parks, err := s.SyncCatalog(t.Context())
	require.NoError(t, err)
	assert.Zero(t, groups)
	assert.Zero(t, parks)
}
