package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func market(id, question string, yes string, vol float64) Market {
	return Market{
		ID:            id,
		Question:      question,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: fmt.Sprintf(`["%s","0.5"]`, yes),
		Volume24hr:    null.FloatFrom(vol),
		VolumeNum:     null.FloatFrom(vol * 10),
	}
}

func TestMatch(t *testing.T) {
	k := DefaultKeywords()

	assert.Equal(t, []string{"BTC-USD"}, k.Match("Will Bitcoin reach $100k?", ""))
	assert.Equal(t, []string{"MACRO_FED", "MACRO_BRAZIL"},
		k.Match("Fed rate cut in March?", "Impact on Brazilian markets"))
	assert.Empty(t, k.Match("Who wins the Super Bowl?", ""))
	// plain substring matching, as in the table
	assert.Contains(t, k.Match("Will Tether depeg?", ""), "ETH-USD")
}

func TestKeywords_Substitutable(t *testing.T) {
	k := Keywords{{Key: "SOL-USD", Keywords: []string{"Solana"}}}
	assert.Equal(t, []string{"SOL-USD"}, k.Match("solana ETF approved?", ""))
	assert.True(t, k.Has("SOL-USD"))
	assert.False(t, k.Has("BTC-USD"))
}

func TestSentimentFromMarket(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  string
		prices    string
		wantProb  null.Float
		wantLabel null.String
		wantErr   bool
	}{
		{"yes first", `["Yes","No"]`, `["0.65","0.35"]`, null.FloatFrom(0.65), null.StringFrom("bullish"), false},
		{"yes second", `["No","Yes"]`, `["0.65","0.35"]`, null.FloatFrom(0.35), null.StringFrom("bearish"), false},
		{"lower-case yes", `["no","yes"]`, `["0.5","0.5"]`, null.FloatFrom(0.5), null.StringFrom("neutral"), false},
		{"no yes outcome", `["Lula","Bolsonaro"]`, `["0.4","0.6"]`, null.FloatFrom(0.4), null.StringFrom("bearish"), false},
		{"boundary bullish", `["Yes","No"]`, `["0.6","0.4"]`, null.FloatFrom(0.6), null.StringFrom("bullish"), false},
		{"no prices", `["Yes","No"]`, `[]`, null.Float{}, null.String{}, false},
		{"missing fields", ``, ``, null.Float{}, null.String{}, false},
		{"garbage outcomes", `not json`, `["0.5"]`, null.Float{}, null.String{}, true},
		{"garbage prices", `["Yes","No"]`, `also not`, null.Float{}, null.String{}, true},
		{"bad price", `["Yes","No"]`, `["abc","0.5"]`, null.Float{}, null.String{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SentimentFromMarket(Market{
				ID:            "m1",
				Question:      "q",
				Outcomes:      tt.outcomes,
				OutcomePrices: tt.prices,
				Volume24hr:    null.FloatFrom(10),
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "q", got.Question)
			assert.Equal(t, 10.0, got.Volume24h.Float64)
			assert.Equal(t, tt.wantProb.Valid, got.YesProbability.Valid)
			assert.InDelta(t, tt.wantProb.Float64, got.YesProbability.Float64, 1e-9)
			assert.Equal(t, tt.wantLabel, got.Sentiment)
		})
	}
}

func TestAggregateMarkets(t *testing.T) {
	markets := []MarketSentiment{
		{Question: "a", YesProbability: null.FloatFrom(0.8), Volume24h: null.FloatFrom(3000)},
		{Question: "b", YesProbability: null.FloatFrom(0.4), Volume24h: null.FloatFrom(1000)},
		{Question: "c", YesProbability: null.FloatFrom(0.1), Volume24h: null.FloatFrom(0)},
		{Question: "d", Volume24h: null.FloatFrom(500)},
	}

	agg := AggregateMarkets(markets)

	// (0.8*3000 + 0.4*1000) / 4000 = 0.7
	assert.InDelta(t, 0.4, agg.Score.Float64, 1e-9)
	assert.Equal(t, "bullish", agg.Label.String)
	assert.Equal(t, 4, agg.MarketCount)
	assert.Equal(t, 4000.0, agg.TotalVolume)
	assert.InDelta(t, math.Round(math.Log10(4001)/7*1000)/1000, agg.Confidence.Float64, 1e-9)
	require.NotNil(t, agg.TopMarket)
	assert.Equal(t, "a", agg.TopMarket.Question)
}

func TestAggregateMarkets_Labels(t *testing.T) {
	one := func(p float64) []MarketSentiment {
		return []MarketSentiment{{YesProbability: null.FloatFrom(p), Volume24h: null.FloatFrom(10)}}
	}

	assert.Equal(t, "bullish", AggregateMarkets(one(0.61)).Label.String)
	assert.Equal(t, "neutral", AggregateMarkets(one(0.55)).Label.String)
	assert.Equal(t, "bearish", AggregateMarkets(one(0.39)).Label.String)
	assert.InDelta(t, -0.22, AggregateMarkets(one(0.39)).Score.Float64, 1e-9)
}

func TestAggregateMarkets_LabelUsesUnroundedScore(t *testing.T) {
	one := func(p float64) []MarketSentiment {
		return []MarketSentiment{{YesProbability: null.FloatFrom(p), Volume24h: null.FloatFrom(10)}}
	}

	// 0.1998 rounds to 0.2 but stays below the cut-off
	up := AggregateMarkets(one(0.5999))
	assert.Equal(t, 0.2, up.Score.Float64)
	assert.Equal(t, "neutral", up.Label.String)

	down := AggregateMarkets(one(0.4001))
	assert.Equal(t, -0.2, down.Score.Float64)
	assert.Equal(t, "neutral", down.Label.String)
}

func TestAggregateMarkets_ConfidenceCapped(t *testing.T) {
	agg := AggregateMarkets([]MarketSentiment{
		{YesProbability: null.FloatFrom(0.5), Volume24h: null.FloatFrom(1e9)},
	})
	assert.Equal(t, 1.0, agg.Confidence.Float64)
	assert.Equal(t, 0.0, agg.Score.Float64)
	assert.Equal(t, "neutral", agg.Label.String)
}

func TestAggregateMarkets_Empty(t *testing.T) {
	agg := AggregateMarkets(nil)
	assert.False(t, agg.Score.Valid)
	assert.False(t, agg.Label.Valid)
	assert.False(t, agg.Confidence.Valid)
	assert.Equal(t, 0, agg.MarketCount)
	assert.Nil(t, agg.TopMarket)

	// markets without volume give a count but no score
	agg = AggregateMarkets([]MarketSentiment{{YesProbability: null.FloatFrom(0.9)}})
	assert.Equal(t, 1, agg.MarketCount)
	assert.False(t, agg.Score.Valid)
}

func TestAggregate_Prediction(t *testing.T) {
	p := AggregateMarkets([]MarketSentiment{
		{Question: "Bitcoin above 100k?", YesProbability: null.FloatFrom(0.7), Volume24h: null.FloatFrom(100)},
	}).Prediction()

	assert.InDelta(t, 0.4, p.PolymarketScore.Float64, 1e-9)
	assert.Equal(t, 1, p.PolymarketMarketCount)
	assert.Equal(t, 100.0, p.PolymarketVolume.Float64)
	assert.Equal(t, "Bitcoin above 100k?", p.PolymarketTopQuestion.String)
	assert.Equal(t, 0.7, p.PolymarketTopProbability.Float64)

	empty := Aggregate{}.Prediction()
	assert.False(t, empty.PolymarketVolume.Valid)
	assert.False(t, empty.PolymarketTopQuestion.Valid)
}

func TestFetchSentiment(t *testing.T) {
	var mu sync.Mutex
	var categories []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "true", q.Get("active"))
		assert.Equal(t, "false", q.Get("closed"))
		assert.Equal(t, "volume24hr", q.Get("order"))
		assert.Equal(t, "false", q.Get("ascending"))

		mu.Lock()
		categories = append(categories, q.Get("category"))
		mu.Unlock()

		var markets []Market
		switch q.Get("category") {
		case "crypto":
			for i := 0; i < 7; i++ {
				markets = append(markets, market(fmt.Sprintf("btc-%d", i), "Bitcoin above target?", "0.7", float64(100*(i+1))))
			}
		case "economics":
			markets = append(markets, market("fed-1", "FOMC rate cut?", "0.3", 5000))
		case "politics":
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "":
			// duplicate of a categorized market
			markets = append(markets, market("fed-1", "FOMC rate cut?", "0.3", 5000))
			markets = append(markets, market("", "Bitcoin without id", "0.9", 1))
		}
		_ = json.NewEncoder(w).Encode(markets)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	groups := c.FetchSentiment(context.Background())

	assert.ElementsMatch(t, []string{"economics", "crypto", "business", "politics", ""}, categories)

	require.Len(t, groups["BTC-USD"], 5)
	assert.Equal(t, 700.0, groups["BTC-USD"][0].Volume24h.Float64)
	assert.Equal(t, 300.0, groups["BTC-USD"][4].Volume24h.Float64)

	require.Len(t, groups["MACRO_FED"], 1)
	assert.Equal(t, "bearish", groups["MACRO_FED"][0].Sentiment.String)

	aggs := c.Sentiment(context.Background())
	assert.Equal(t, "bullish", aggs["BTC-USD"].Label.String)
	assert.Equal(t, "bearish", aggs["MACRO_FED"].Label.String)
}

func TestFetchSentiment_LogsUnreadablePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var markets []Market
		if r.URL.Query().Get("category") == "crypto" {
			bad := market("btc-bad", "Bitcoin above target?", "0.7", 50)
			bad.OutcomePrices = "not json"
			markets = append(markets, bad, market("btc-ok", "Bitcoin below target?", "0.7", 100))
		}
		_ = json.NewEncoder(w).Encode(markets)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	groups := New(WithBaseURL(srv.URL), WithLogger(zap.New(core))).FetchSentiment(context.Background())

	require.Len(t, groups["BTC-USD"], 2)
	assert.True(t, groups["BTC-USD"][0].YesProbability.Valid)
	assert.False(t, groups["BTC-USD"][1].YesProbability.Valid)

	entries := logs.FilterMessage("unreadable market prices").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "btc-bad", entries[0].ContextMap()["market"])
}

func TestFetchSentiment_AllFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	groups := New(WithBaseURL(srv.URL)).FetchSentiment(context.Background())
	assert.Empty(t, groups)
}
