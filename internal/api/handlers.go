package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/api/job"
	"github.com/newthinker/radar/internal/api/response"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/digest"
	"github.com/newthinker/radar/internal/fetcher"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/newthinker/radar/internal/storage/quote"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 60

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":      "ok",
		"instruments": s.deps.Catalog.Len(),
	}
	if s.deps.Runner != nil {
		status["fetch_running"] = s.deps.Runner.Running()
	}
	response.JSON(w, http.StatusOK, status)
}

// handleQuotes lists the latest row of every instrument, or every row of
// ?date=YYYY-MM-DD, ordered by sector then ticker.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		rows []core.Row
		err  error
	)
	if date := q.Get("date"); date != "" {
		day, perr := time.Parse("2006-01-02", date)
		if perr != nil {
			response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("Invalid date format")))
			return
		}
		rows, err = s.deps.Quotes.ByDate(r.Context(), day)
	} else {
		rows, err = s.deps.Quotes.Latest(r.Context())
	}
	if err != nil {
		response.Fail(w, err)
		return
	}

	if cat := core.Category(q.Get("category")); cat != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.Category == cat {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	quote.SortBySector(rows)

	response.JSON(w, http.StatusOK, map[string]any{
		"total":  len(rows),
		"quotes": rows,
	})
}

// handleQuoteHistory lists the rows of one instrument, newest first.
func (s *Server) handleQuoteHistory(w http.ResponseWriter, r *http.Request) {
	ticker, ok := s.resolveTicker(r.PathValue("ticker"))
	if !ok {
		response.Fail(w, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s", r.PathValue("ticker"))))
		return
	}

	q := r.URL.Query()
	filter := quote.ListFilter{Ticker: ticker, Limit: defaultHistoryLimit}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.Fail(w, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("invalid %s date %q", key, v)))
			return
		}
		*dst = t
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	rows, err := s.deps.Quotes.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	count, _ := s.deps.Quotes.Count(r.Context(), quote.ListFilter{Ticker: ticker, From: filter.From, To: filter.To})

	response.JSON(w, http.StatusOK, map[string]any{
		"instrument": s.deps.Catalog.Info(ticker),
		"rows":       rows,
		"total":      count,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// resolveTicker accepts B3 tickers with or without the .SA suffix.
func (s *Server) resolveTicker(t string) (string, bool) {
	t = strings.ToUpper(t)
	if _, ok := s.deps.Catalog.Lookup(t); ok {
		return t, true
	}
	if _, ok := s.deps.Catalog.Lookup(t + ".SA"); ok {
		return t + ".SA", true
	}
	return "", false
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	instruments := s.deps.Catalog.All()
	if cat := core.Category(r.URL.Query().Get("category")); cat != "" {
		instruments = s.deps.Catalog.ByCategory(cat)
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"total":       len(instruments),
		"instruments": instruments,
	})
}

type signalsView struct {
	Bullish       []string            `json:"bullish"`
	Bearish       []string            `json:"bearish"`
	RSIOversold   []digest.RSIReading `json:"rsi_oversold"`
	RSIOverbought []digest.RSIReading `json:"rsi_overbought"`
	Near52wHigh   []string            `json:"near_52w_high"`
	Near52wLow    []string            `json:"near_52w_low"`
	VolumeSpike   []string            `json:"volume_spike"`
}

// handleSignals buckets the latest equity rows by raised signal.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	rows, err := s.latestEquities(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	sum := digest.SummarizeSignals(rows)
	response.JSON(w, http.StatusOK, signalsView{
		Bullish:       sum.BullishTickers,
		Bearish:       sum.BearishTickers,
		RSIOversold:   sum.RSIOversold,
		RSIOverbought: sum.RSIOverbought,
		Near52wHigh:   sum.Near52wHigh,
		Near52wLow:    sum.Near52wLow,
		VolumeSpike:   sum.VolumeSpike,
	})
}

func (s *Server) handleScoring(w http.ResponseWriter, r *http.Request) {
	rows, err := s.latestEquities(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, scoring.Build(rows, s.deps.Scoring))
}

func (s *Server) latestEquities(r *http.Request) ([]core.Row, error) {
	rows, err := s.deps.Quotes.Latest(r.Context())
	if err != nil {
		return nil, err
	}
	quote.SortBySector(rows)
	equities := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		if row.Category.IsEquity() {
			equities = append(equities, row)
		}
	}
	return equities, nil
}

func (s *Server) handlePolymarket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Predictions == nil {
		response.Fail(w, core.WrapError(core.ErrConfigMissing, errors.New("polymarket disabled")))
		return
	}
	response.JSON(w, http.StatusOK, s.deps.Predictions.Sentiment(r.Context()))
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		response.Fail(w, core.WrapError(core.ErrConfigMissing, errors.New("reports disabled")))
		return
	}
	d, err := s.deps.Reports.Digest(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, d)
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		response.Fail(w, core.WrapError(core.ErrConfigMissing, errors.New("reports disabled")))
		return
	}
	b, err := s.deps.Reports.Brief(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, b)
}

// handleFetch starts a cycle in the background and returns its job.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		response.Fail(w, core.WrapError(core.ErrConfigMissing, errors.New("fetcher disabled")))
		return
	}
	if s.deps.Runner.Running() {
		response.Error(w, http.StatusConflict, core.WrapError(core.ErrInvalidRequest, fetcher.ErrRunning))
		return
	}

	j := s.jobs.Create("fetch")
	go func() {
		s.jobs.Update(j.ID, func(j *job.Job) { j.Status = job.StatusRunning })
		rep, err := s.deps.Runner.Run(s.ctx)
		if err != nil {
			s.logger.Error("triggered fetch failed",
				zap.String("job_id", j.ID),
				zap.String("run_id", rep.RunID),
				zap.Error(err),
			)
			s.jobs.Fail(j.ID, rep, err)
			return
		}
		s.jobs.Complete(j.ID, rep)
	}()
	response.JSON(w, http.StatusAccepted, j)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.List()
	response.JSON(w, http.StatusOK, map[string]any{
		"total": len(jobs),
		"jobs":  jobs,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}
