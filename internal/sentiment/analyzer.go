// Package sentiment scores finance headlines with a weighted bilingual
// vocabulary.
package sentiment

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/core"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Label values
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Label cut-offs for a combined score.
const (
	positiveCutoff = 0.2
	negativeCutoff = -0.2
)

var tokenSplit = regexp.MustCompile(`[\s.,;:!?()]+`)

// Lexicon maps a lower-case term to its signed weight.
type Lexicon map[string]float64

type lexiconFile struct {
	PT map[string]float64 `yaml:"pt"`
	EN map[string]float64 `yaml:"en"`
}

// ParseLexicon merges the pt and en sections of a YAML lexicon.
func ParseLexicon(data []byte) (Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parse lexicon: %w", err))
	}
	lex := make(Lexicon, len(f.PT)+len(f.EN))
	for _, section := range []map[string]float64{f.PT, f.EN} {
		for term, w := range section {
			lex[strings.ToLower(term)] = w
		}
	}
	return lex, nil
}

// LoadLexicon reads a lexicon file.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// DefaultLexicon returns the embedded Portuguese and English vocabulary.
func DefaultLexicon() Lexicon {
	lex, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic(err)
	}
	return lex
}

// Item is one headline to score.
type Item struct {
	Title  string
	Text   string
	Source string
}

// Analyzer scores text against a fixed lexicon. Safe for concurrent use.
type Analyzer struct {
	lex Lexicon
}

// NewAnalyzer creates an analyzer. The lexicon is copied.
func NewAnalyzer(lex Lexicon) *Analyzer {
	own := make(Lexicon, len(lex))
	for k, v := range lex {
		own[k] = v
	}
	return &Analyzer{lex: own}
}

// Score averages the weights of matched tokens and squashes the result into
// (-1, 1). Text without matches scores 0.
func (a *Analyzer) Score(text string) float64 {
	if text == "" {
		return 0
	}

	var total float64
	var matched int
	for _, word := range tokenSplit.Split(strings.ToLower(text), -1) {
		if w, ok := a.lex[word]; ok {
			total += w
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	raw := total / float64(matched)
	return raw / (1 + math.Abs(raw))
}

// Analyze returns the mean score over items with text, and the first item's
// headline. Both are null when nothing could be scored.
func (a *Analyzer) Analyze(items []Item) (score null.Float, headline null.String) {
	if len(items) == 0 {
		return
	}

	var sum float64
	var n int
	for _, it := range items {
		if it.Text == "" {
			continue
		}
		sum += a.Score(it.Text)
		n++
	}
	if n == 0 {
		return
	}

	first := items[0]
	h := first.Title
	if h == "" {
		h = first.Text
	}
	return null.FloatFrom(sum / float64(n)), null.NewString(h, h != "")
}

// Label classifies a combined score. A null score has no label.
func Label(score null.Float) null.String {
	if !score.Valid {
		return null.String{}
	}
	switch {
	case score.Float64 >= positiveCutoff:
		return null.StringFrom(LabelPositive)
	case score.Float64 <= negativeCutoff:
		return null.StringFrom(LabelNegative)
	default:
		return null.StringFrom(LabelNeutral)
	}
}
