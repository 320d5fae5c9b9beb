package polymarket

import "strings"

// Group is a tracked asset or theme and the phrases that tie a market to it.
type Group struct {
	Key      string   `yaml:"key" json:"key"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Keywords is an ordered matching table. Match reports keys in table order.
type Keywords []Group

// DefaultKeywords returns a fresh copy of the built-in table.
func DefaultKeywords() Keywords {
	return Keywords{
		{Key: "BTC-USD", Keywords: []string{"bitcoin", "btc"}},
		{Key: "ETH-USD", Keywords: []string{"ethereum", "eth"}},
		{Key: "MACRO_FED", Keywords: []string{"federal reserve", "fed rate", "interest rate", "fomc", "rate cut", "rate hike"}},
		{Key: "MACRO_RECESSION", Keywords: []string{"recession", "economic downturn", "gdp"}},
		{Key: "MACRO_INFLATION", Keywords: []string{"inflation", "cpi", "consumer price"}},
		{Key: "MACRO_BRAZIL", Keywords: []string{"brazil", "lula", "brazilian"}},
		{Key: "GC=F", Keywords: []string{"gold price", "gold spot"}},
		{Key: "CL=F", Keywords: []string{"oil price", "crude oil", "wti", "brent"}},
		{Key: "SECTOR_TECH", Keywords: []string{"nvidia", "apple", "microsoft", "google", "meta", "ai stocks", "tech stocks"}},
		{Key: "GEOPOLITICS", Keywords: []string{"china", "taiwan", "russia", "ukraine", "trade war", "tariff"}},
	}
}

// DefaultCategories are the Gamma categories queried besides the unfiltered
// top markets.
func DefaultCategories() []string {
	return []string{"economics", "crypto", "business", "politics"}
}

// Match returns every group whose phrase appears as a substring of the
// lower-cased question and description.
func (k Keywords) Match(question, description string) []string {
	text := strings.ToLower(question + " " + description)

	var keys []string
	for _, g := range k {
		for _, kw := range g.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				keys = append(keys, g.Key)
				break
			}
		}
	}
	return keys
}

// Has reports whether key is a group in the table.
func (k Keywords) Has(key string) bool {
	for _, g := range k {
		if g.Key == key {
			return true
		}
	}
	return false
}
