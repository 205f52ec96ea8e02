package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/api"
	"github.com/huntwise/regwatch/internal/config"
	"github.com/huntwise/regwatch/internal/dispatch"
	"github.com/huntwise/regwatch/internal/hash/sha256"
	"github.com/huntwise/regwatch/internal/pipeline"
	pubmem "github.com/huntwise/regwatch/internal/publisher/memory"
	"github.com/huntwise/regwatch/internal/regcal"
	"github.com/huntwise/regwatch/internal/regdata"
	storemem "github.com/huntwise/regwatch/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubFetcher struct{ body string }

func (f stubFetcher) Fetch(_ context.Context, _ regdata.FetchRequest) (regdata.FetchResponse, error) {
	return regdata.FetchResponse{StatusCode: 200, Body: []byte(f.body)}, nil
}

const feePage = `<table class="fee-table">
<tr class="fee-row"><td>Elk</td><td>$828.00</td></tr>
</table>`

func newTestServer(t *testing.T) (*api.Server, *storemem.AlertLog, *pubmem.Publisher) {
	t.Helper()

	clock := fixedClock{now: time.Date(2026, 3, 27, 9, 0, 0, 0, time.UTC)}
	sources := map[string]config.SourceConfig{
		"co-cpw": {
			Name:       "Colorado Parks and Wildlife",
			Deadline:   "2026-04-01",
			WindowOpen: true,
			URLs:       map[string]string{"fees": "https://cpw.example/fees"},
			Schema: config.SchemaSpec{
				RequiredMarkers: []string{"fee-table"},
				FieldMarkers:    map[string]string{"tag_fees": "tr.fee-row"},
				RowMarker:       "fee-row",
				MinExpectedRows: 1,
			},
		},
	}
	provider := regcal.New(sources, clock)

	lkg := storemem.NewLKGStore()
	alerts := storemem.NewAlertLog()
	backoffs := storemem.NewBackoffStore()
	pub := pubmem.New()

	pipe := pipeline.New(lkg, alerts, nil, sha256.New(), clock, zap.NewNop(), pipeline.DefaultOptions())
	runner := pipeline.NewRunner(
		dispatch.NewGuard(), backoffs, stubFetcher{body: feePage}, stubFetcher{body: feePage}, nil,
		provider, pipe, clock, zap.NewNop(),
	)

	srv := api.NewServer(runner, provider, backoffs, alerts, pub, clock, zap.NewNop(), "ops-alerts")
	return srv, alerts, pub
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSchedule(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schedule", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sched regdata.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sched))
	require.NotEmpty(t, sched.Tasks)

	// Five days to the deadline puts the deadline crawl at twice_week/P2.
	var deadlineTask *regdata.CrawlTask
	for i := range sched.Tasks {
		if sched.Tasks[i].Category == regdata.CategoryDeadlines {
			deadlineTask = &sched.Tasks[i]
			break
		}
	}
	require.NotNil(t, deadlineTask)
	require.Equal(t, regdata.FrequencyTwiceWeek, deadlineTask.Frequency)
	require.Equal(t, 2, deadlineTask.Priority)
}

func TestCrawlSource(t *testing.T) {
	t.Parallel()

	srv, alerts, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sources/co-cpw/crawl?category=fees", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result regdata.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, regdata.PipelineSuccess, result.Status)

	logged, err := alerts.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, logged)
}

func TestCrawlSourceNotFound(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sources/nope/crawl", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompileDigestPublishes(t *testing.T) {
	t.Parallel()

	srv, _, pub := newTestServer(t)

	// Crawl once so the digest has a verified update to report.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sources/co-cpw/crawl?category=fees", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/digest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.InDelta(t, 100.0, body["health_score"], 0.001)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ops-alerts", msgs[0].Topic)
}

func TestGetBackoff(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sources/co-cpw/backoff", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "co-cpw", body["source_id"])
}
