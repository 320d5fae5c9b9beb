package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{
	"timestamp":[1704153600,1704240000,1704326400],
	"indicators":{"quote":[{
		"open":[10.0,null,11.0],
		"high":[10.5,null,11.5],
		"low":[9.5,null,10.5],
		"close":[10.2,null,11.2],
		"volume":[1000,null,null]
	}]}
}],"error":null}}`

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.delays = append(s.delays, d)
	}
	return ctx.Err()
}

type countingMetrics struct {
	mu      sync.Mutex
	fetches map[string]int
	retries int
}

func (m *countingMetrics) RecordFetch(_, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetches == nil {
		m.fetches = map[string]int{}
	}
	m.fetches[result]++
}

func (m *countingMetrics) RecordRetry(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Yahoo, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := &sleepRecorder{}
	base := []Option{
		WithBaseURL(srv.URL),
		WithMinInterval(0),
		WithRetry(5, time.Second, 0),
		withSleep(rec.sleep),
	}
	return New(append(base, opts...)...), rec
}

func TestYahoo_ImplementsMarketData(t *testing.T) {
	var _ collector.MarketData = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	assert.Equal(t, "yahoo", New().Name())
}

func TestHistory_DropsNullClose(t *testing.T) {
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/PETR4.SA", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, chartBody)
	}))

	bars, err := y.History(context.Background(), "PETR4.SA", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 10.2, bars[0].Close)
	assert.Equal(t, 1000.0, bars[0].Volume.Float64)
	assert.Equal(t, 11.2, bars[1].Close)
	assert.False(t, bars[1].Volume.Valid)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestHistory_EscapesTicker(t *testing.T) {
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/%5EBVSP", r.URL.EscapedPath())
		fmt.Fprint(w, chartBody)
	}))

	_, err := y.History(context.Background(), "^BVSP", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
}

func TestHistory_InvalidArguments(t *testing.T) {
	var calls atomic.Int32
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := y.History(context.Background(), "", collector.Range1Y, collector.Interval1D)
	assert.True(t, errors.Is(err, core.ErrPermanentFetch))

	_, err = y.History(context.Background(), "VALE3.SA", collector.Range("2y"), collector.Interval1D)
	assert.True(t, errors.Is(err, core.ErrPermanentFetch))

	_, err = y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval("1h"))
	assert.True(t, errors.Is(err, core.ErrPermanentFetch))

	assert.Equal(t, int32(0), calls.Load())
}

func TestHistory_RetriesTooManyRequests(t *testing.T) {
	for _, failures := range []int{0, 1, 3, 5} {
		t.Run(fmt.Sprintf("%d_failures", failures), func(t *testing.T) {
			var calls atomic.Int32
			metrics := &countingMetrics{}
			y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) <= failures {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				fmt.Fprint(w, chartBody)
			}), WithMetrics(metrics))

			bars, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
			require.NoError(t, err)
			assert.Len(t, bars, 2)
			assert.Equal(t, int32(1+failures), calls.Load())
			assert.Len(t, rec.delays, failures)
			assert.Equal(t, failures, metrics.retries)
			assert.Equal(t, 1, metrics.fetches["ok"])
		})
	}
}

func TestHistory_BackoffDoubles(t *testing.T) {
	var calls atomic.Int32
	y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartBody)
	}))

	_, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestHistory_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chartBody)
	}))

	_, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.delays)
}

func TestHistory_CapsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "86400")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chartBody)
	}), WithRetry(2, time.Second, 0))

	_, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{4 * time.Second}, rec.delays)
}

func TestHistory_RetriesTimeout(t *testing.T) {
	var calls atomic.Int32
	metrics := &countingMetrics{}
	y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		fmt.Fprint(w, chartBody)
	}), WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}), WithMetrics(metrics))

	bars, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
	assert.Equal(t, 1, metrics.retries)
}

func TestHistory_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	metrics := &countingMetrics{}
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), WithRetry(2, time.Millisecond, 0), WithMetrics(metrics))

	_, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransientFetch))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, metrics.fetches["exhausted"])
}

func TestHistory_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	_, err := y.History(context.Background(), "NOPE3.SA", collector.Range1Y, collector.Interval1D)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPermanentFetch))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHistory_PermanentOnBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"chart":`},
		{"empty result", `{"chart":{"result":[],"error":null}}`},
		{"provider error", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			_, err := y.History(context.Background(), "VALE3.SA", collector.Range1Y, collector.Interval1D)
			assert.True(t, errors.Is(err, core.ErrPermanentFetch))
		})
	}
}

func TestHistory_ContextCancelled(t *testing.T) {
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := y.History(ctx, "VALE3.SA", collector.Range1Y, collector.Interval1D)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFundamentals(t *testing.T) {
	body := `{"quoteSummary":{"result":[{
		"summaryDetail":{
			"marketCap":{"raw":500000000000,"fmt":"500B"},
			"trailingPE":{"raw":4.5,"fmt":"4.50"},
			"priceToBook":1.2,
			"dividendYield":{"raw":0.12,"fmt":"12%"},
			"fiftyTwoWeekHigh":{"raw":42.0},
			"fiftyTwoWeekLow":{"raw":30.0}
		},
		"defaultKeyStatistics":{
			"forwardPE":{},
			"trailingEps":{"raw":8.1},
			"beta":{"raw":1.1}
		},
		"financialData":{
			"profitMargins":{"raw":0.25},
			"returnOnEquity":{"raw":1.5},
			"recommendationKey":"buy",
			"targetMeanPrice":{"raw":45.0},
			"numberOfAnalystOpinions":{"raw":12}
		}
	}],"error":null}}`

	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/PETR4.SA", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("modules"), "financialData")
		fmt.Fprint(w, body)
	}))

	f, err := y.Fundamentals(context.Background(), "PETR4.SA")
	require.NoError(t, err)

	assert.Equal(t, 500000000000.0, f.MarketCap.Float64)
	assert.Equal(t, 4.5, f.PE.Float64)
	assert.Equal(t, 1.2, f.PB.Float64)
	assert.False(t, f.ForwardPE.Valid)
	assert.False(t, f.DebtToEquity.Valid)
	assert.InDelta(t, 12.0, f.DividendYield.Float64, 1e-9)
	assert.InDelta(t, 25.0, f.ProfitMargin.Float64, 1e-9)
	// already a percentage
	assert.Equal(t, 1.5, f.ROE.Float64)
	assert.Equal(t, "buy", f.AnalystRating.String)
	assert.Equal(t, 42.0, f.Week52High.Float64)
	assert.Equal(t, 12.0, f.NumAnalysts.Float64)
}

func TestFundamentals_EmptyResult(t *testing.T) {
	y, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteSummary":{"result":[]}}`)
	}))

	f, err := y.Fundamentals(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, core.Fundamentals{}, f)
}

func TestThrottle_SpacesRequests(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	th := newThrottle(500 * time.Millisecond)
	th.now = func() time.Time { return now }

	assert.Equal(t, time.Duration(0), th.reserve())
	assert.Equal(t, 500*time.Millisecond, th.reserve())
	assert.Equal(t, time.Second, th.reserve())

	// a slow response pushes the next slot past its completion
	now = now.Add(3 * time.Second)
	th.done()
	assert.Equal(t, 500*time.Millisecond, th.reserve())
}

func TestThrottle_SharedAcrossGoroutines(t *testing.T) {
	y, rec := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody)
	}), WithMinInterval(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := y.History(context.Background(), "VALE3.SA", collector.Range5D, collector.Interval1D)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// the first caller goes immediately, every other one waits for a slot
	assert.Len(t, rec.delays, 3)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.value, now), tt.value)
	}
}
