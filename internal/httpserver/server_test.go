package httpserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/parkpulse/internal/crowd"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/datastore/repository"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/observability"
)

type fakeEngine struct {
	timeout time.Duration
	batch   []crowd.ParkRef
}

func (f *fakeEngine) ComputeWithTimeout(_ context.Context, parkID uint, d time.Duration) crowd.Result {
	f.timeout = d
	return crowd.Result{ParkID: parkID, Level: 150, Label: crowd.LabelVeryHigh, RidesUsed: 3, TotalRides: 10, Confidence: 42}
}

func (f *fakeEngine) ComputeBatch(_ context.Context, parks []crowd.ParkRef) map[uint]crowd.Result {
	f.batch = parks
	out := make(map[uint]crowd.Result, len(parks))
	for _, p := range parks {
		out[p.ID] = crowd.Result{ParkID: p.ID, Level: int(p.ID) * 10, Label: crowd.LabelFor(int(p.ID) * 10)}
	}
	return out
}

type fakeParks map[uint]*entities.Park

func (f fakeParks) GetPark(_ context.Context, id uint) (*entities.Park, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, repository.ErrParkNotFound
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	s := New("127.0.0.1:0", &fakeEngine{}, fakeParks{})
	rec := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	failing := New("127.0.0.1:0", &fakeEngine{}, fakeParks{}, WithDatabasePing(func(context.Context) error {
		return errors.NewStd("database is closed")
	}))
	rec = do(t, failing, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unreachable"`)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	m.Ingest.RecordCatalogRows("parks", 3)

	s := New("127.0.0.1:0", &fakeEngine{}, fakeParks{}, WithMetrics(m))
	rec := do(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parkpulse_")

	// without metrics the route is absent
	rec = do(t, New("127.0.0.1:0", &fakeEngine{}, fakeParks{}), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCrowdLevel(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	s := New("127.0.0.1:0", engine, fakeParks{7: {ID: 7, Name: "Park"}}, WithCrowdTimeout(2*time.Second))

	rec := do(t, s, "/api/v1/parks/7/crowd-level")
	require.Equal(t, http.StatusOK, rec.Code)

	var res crowd.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, uint(7), res.ParkID)
	assert.Equal(t, 150, res.Level)
	assert.Equal(t, crowd.LabelVeryHigh, res.Label)
	assert.Equal(t, 2*time.Second, engine.timeout)

	assert.Equal(t, http.StatusNotFound, do(t, s, "/api/v1/parks/8/crowd-level").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/v1/parks/abc/crowd-level").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/v1/parks/0/crowd-level").Code)
}

func TestGetCrowdLevels(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	s := New("127.0.0.1:0", engine, fakeParks{})

	rec := do(t, s, "/api/v1/crowd-levels?ids=3,1,3,12")
	require.Equal(t, http.StatusOK, rec.Code)

	var res []crowd.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 3)
	assert.Equal(t, uint(3), res[0].ParkID)
	assert.Equal(t, uint(1), res[1].ParkID)
	assert.Equal(t, 120, res[2].Level)
	assert.Len(t, engine.batch, 3, "duplicate ids are computed once")

	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/v1/crowd-levels").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/v1/crowd-levels?ids=1,x").Code)

	many := strings.Repeat("1,", maxBatchParks) + "1"
	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/v1/crowd-levels?ids="+many).Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	// reserve a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(addr, &fakeEngine{}, fakeParks{})
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "http-server", s.String())
}
