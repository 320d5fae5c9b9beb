package polymarket

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/core"
	"github.com/shopspring/decimal"
)

// Label values
const (
	LabelBullish = "bullish"
	LabelBearish = "bearish"
	LabelNeutral = "neutral"
)

const (
	bullishProbability = 0.6
	bearishProbability = 0.4
	scoreCutoff        = 0.2
	confidenceDecades  = 7.0
)

// MarketSentiment is the reading of one market.
type MarketSentiment struct {
	Question       string      `json:"question"`
	YesProbability null.Float  `json:"yes_probability"`
	Sentiment      null.String `json:"sentiment"`
	Volume24h      null.Float  `json:"volume_24h"`
	VolumeTotal    null.Float  `json:"volume_total"`
}

// Aggregate is the volume-weighted view of a keyword group.
type Aggregate struct {
	Score       null.Float       `json:"score"`
	Label       null.String      `json:"label"`
	Confidence  null.Float       `json:"confidence"`
	MarketCount int              `json:"market_count"`
	TotalVolume float64          `json:"total_volume"`
	TopMarket   *MarketSentiment `json:"top_market"`
}

// SentimentFromMarket reads the "Yes" probability of m. Outcomes and prices
// arrive as JSON-encoded string arrays; when no outcome is named "Yes" the
// first price is used. On a parse error the returned reading still carries
// the question and volumes, with a null probability.
func SentimentFromMarket(m Market) (MarketSentiment, error) {
	ms := MarketSentiment{
		Question:    m.Question,
		Volume24h:   m.Volume24hr,
		VolumeTotal: m.VolumeNum,
	}

	var outcomes, prices []string
	if m.Outcomes == "" || m.OutcomePrices == "" {
		return ms, nil
	}
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return ms, fmt.Errorf("outcomes of %q: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return ms, fmt.Errorf("outcome prices of %q: %w", m.ID, err)
	}

	price := ""
	for _, want := range []string{"Yes", "yes"} {
		if i := indexOf(outcomes, want); i >= 0 && i < len(prices) {
			price = prices[i]
			break
		}
	}
	if price == "" && len(prices) > 0 {
		price = prices[0]
	}

	if price == "" {
		return ms, nil
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return ms, fmt.Errorf("price %q of %q: %w", price, m.ID, err)
	}
	yes := p.InexactFloat64()
	ms.YesProbability = null.FloatFrom(yes)

	switch {
	case yes >= bullishProbability:
		ms.Sentiment = null.StringFrom(LabelBullish)
	case yes <= bearishProbability:
		ms.Sentiment = null.StringFrom(LabelBearish)
	default:
		ms.Sentiment = null.StringFrom(LabelNeutral)
	}
	return ms, nil
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

// AggregateMarkets weights each market's probability by its 24h volume.
// Markets without volume or probability count toward MarketCount only.
func AggregateMarkets(markets []MarketSentiment) Aggregate {
	if len(markets) == 0 {
		return Aggregate{}
	}

	var weighted, total float64
	for _, m := range markets {
		vol := m.Volume24h.Float64
		if !m.YesProbability.Valid || vol <= 0 {
			continue
		}
		weighted += m.YesProbability.Float64 * vol
		total += vol
	}

	top := markets[0]
	agg := Aggregate{
		MarketCount: len(markets),
		TotalVolume: total,
		TopMarket:   &top,
	}
	if total <= 0 {
		return agg
	}

	// label from the unrounded score
	score := (weighted/total - 0.5) * 2
	confidence := math.Min(1, math.Log10(total+1)/confidenceDecades)

	agg.Score = null.FloatFrom(round3(score))
	agg.Confidence = null.FloatFrom(round3(confidence))
	switch {
	case score >= scoreCutoff:
		agg.Label = null.StringFrom(LabelBullish)
	case score <= -scoreCutoff:
		agg.Label = null.StringFrom(LabelBearish)
	default:
		agg.Label = null.StringFrom(LabelNeutral)
	}
	return agg
}

func round3(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

// Prediction maps the aggregate onto row fields.
func (a Aggregate) Prediction() core.PredictionSentiment {
	p := core.PredictionSentiment{
		PolymarketScore:       a.Score,
		PolymarketLabel:       a.Label,
		PolymarketConfidence:  a.Confidence,
		PolymarketMarketCount: a.MarketCount,
	}
	if a.MarketCount > 0 {
		p.PolymarketVolume = null.FloatFrom(a.TotalVolume)
	}
	if a.TopMarket != nil {
		p.PolymarketTopQuestion = null.NewString(a.TopMarket.Question, a.TopMarket.Question != "")
		p.PolymarketTopProbability = a.TopMarket.YesProbability
	}
	return p
}
