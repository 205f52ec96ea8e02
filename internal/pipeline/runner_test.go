package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/dispatch"
	"github.com/huntwise/regwatch/internal/hash/sha256"
	"github.com/huntwise/regwatch/internal/pipeline"
	"github.com/huntwise/regwatch/internal/regdata"
	storemem "github.com/huntwise/regwatch/internal/store/memory"
)

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ regdata.FetchRequest) (regdata.FetchResponse, error) {
	f.calls++
	if f.err != nil {
		return regdata.FetchResponse{}, f.err
	}
	return regdata.FetchResponse{
		StatusCode: 200,
		Body:       []byte(f.body),
		Duration:   25 * time.Millisecond,
	}, nil
}

type stubSchemas struct {
	schema regdata.ExtractionSchema
}

func (s stubSchemas) Schema(string) (regdata.ExtractionSchema, bool) {
	return s.schema, true
}

// feePage carries the markers goodSchema requires plus one parseable fee row.
const feePage = `<table class="fee-table">
<tr class="fee-row"><td>Elk</td><td>$828.00</td></tr>
</table>`

func runnerSchema() regdata.ExtractionSchema {
	s := goodSchema()
	s.FieldMarkers = map[string]string{"tag_fees": "tr.fee-row"}
	return s
}

func sourceCtx() regdata.SourceContext {
	return regdata.SourceContext{
		SourceID: "co-cpw",
		Name:     "Colorado Parks and Wildlife",
		URLs: map[regdata.Category]string{
			regdata.CategoryFees: "https://cpw.example/fees",
		},
	}
}

type runnerEnv struct {
	*env
	backoffs *storemem.BackoffStore
	guard    *dispatch.Guard
	static   *stubFetcher
	headless *stubFetcher
	runner   *pipeline.Runner
}

func newRunnerEnv(t *testing.T, static, headlessFetcher *stubFetcher) *runnerEnv {
	t.Helper()
	base := newEnv(t)
	re := &runnerEnv{
		env:      base,
		backoffs: storemem.NewBackoffStore(),
		guard:    dispatch.NewGuard(),
		static:   static,
		headless: headlessFetcher,
	}
	re.runner = pipeline.NewRunner(
		re.guard, re.backoffs, re.static, re.headless, nil,
		stubSchemas{schema: runnerSchema()}, re.pipe, re.clock, zap.NewNop(),
	)
	return re
}

func TestRunSourceHappyPath(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	result, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.NoError(t, err)
	require.Equal(t, regdata.PipelineSuccess, result.Status)
	require.InDelta(t, 828.0, result.CleanData.TagFees["elk"], 0.001)
	require.Equal(t, 1, re.static.calls)
	require.Zero(t, re.headless.calls)
}

func TestRunSourceFetchFailureCountsAgainstBackoff(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{err: errors.New("connection refused")}, &stubFetcher{})
	seedLKG(t, re.env, map[string]float64{"elk": 828}, nil)

	result, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.NoError(t, err)
	require.Equal(t, regdata.PipelineFallback, result.Status)

	state, err := re.backoffs.Get(context.Background(), "co-cpw", regdata.CategoryFees)
	require.NoError(t, err)
	require.Equal(t, 1, state.Failures)
	require.Equal(t, "connection refused", state.LastError)
}

func TestRunSourceSuccessResetsFailures(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	require.NoError(t, re.backoffs.Record(context.Background(), regdata.BackoffState{
		SourceID:  "co-cpw",
		Category:  regdata.CategoryFees,
		Failures:  3,
		UpdatedAt: re.clock.now.Add(-time.Hour),
	}))

	_, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.NoError(t, err)

	state, err := re.backoffs.Get(context.Background(), "co-cpw", regdata.CategoryFees)
	require.NoError(t, err)
	require.Zero(t, state.Failures)
}

func TestRunSourceBackoffGateBlocksEarlyRetry(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	require.NoError(t, re.backoffs.Record(context.Background(), regdata.BackoffState{
		SourceID: "co-cpw",
		Category: regdata.CategoryFees,
		Failures: 3,
		// Third failure 1 minute ago; the 20 minute delay has not elapsed.
		UpdatedAt: re.clock.now.Add(-time.Minute),
	}))

	_, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.ErrorIs(t, err, pipeline.ErrBackoffActive)
	require.Zero(t, re.static.calls)
}

func TestRunSourcePausedAfterTenFailures(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	require.NoError(t, re.backoffs.Record(context.Background(), regdata.BackoffState{
		SourceID:  "co-cpw",
		Category:  regdata.CategoryFees,
		Failures:  10,
		UpdatedAt: re.clock.now.Add(-72 * time.Hour),
	}))

	_, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.ErrorIs(t, err, pipeline.ErrSourcePaused)
	require.Zero(t, re.static.calls)
}

func TestRunSourceRejectsConcurrentCrawl(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	release, ok := re.guard.TryAcquire("co-cpw", regdata.CategoryFees)
	require.True(t, ok)
	defer release()

	_, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.ErrorIs(t, err, pipeline.ErrCrawlInFlight)
}

func TestRunSourceMissingURL(t *testing.T) {
	t.Parallel()

	re := newRunnerEnv(t, &stubFetcher{body: feePage}, &stubFetcher{})
	_, err := re.runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryDeadlines)
	require.ErrorIs(t, err, pipeline.ErrNoURL)
}

func TestRunSourceHeadlessWhenSchemaRequiresJS(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: feePage}
	headlessFetcher := &stubFetcher{body: feePage}
	base := newEnv(t)
	schema := runnerSchema()
	schema.RequiresJS = true
	runner := pipeline.NewRunner(
		dispatch.NewGuard(), storemem.NewBackoffStore(), static, headlessFetcher, nil,
		stubSchemas{schema: schema},
		pipeline.New(base.lkg, base.alerts, nil, sha256.New(), base.clock, zap.NewNop(), pipeline.DefaultOptions()),
		base.clock, zap.NewNop(),
	)

	_, err := runner.RunSource(context.Background(), sourceCtx(), regdata.CategoryFees)
	require.NoError(t, err)
	require.Zero(t, static.calls)
	require.Equal(t, 1, headlessFetcher.calls)
}
