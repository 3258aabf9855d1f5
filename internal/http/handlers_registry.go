package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"registro/internal/cache"
	"registro/internal/core"
	"registro/internal/log"
)

type (
	listResponse struct {
		Collection core.Collection `json:"collection"`
		Records    []core.Record   `json:"records"`
		Total      decimal.Decimal `json:"total"`
	}

	recordResponse struct {
		Collection core.Collection `json:"collection"`
		Index      *int            `json:"index,omitempty"`
		Record     core.Record     `json:"record"`
	}

	totalResponse struct {
		Collection core.Collection `json:"collection"`
		Month      *core.YearMonth `json:"month,omitempty"`
		Total      decimal.Decimal `json:"total"`
		Matched    *int            `json:"matched,omitempty"`
		Skipped    int             `json:"skipped,omitempty"`
	}
)

func (s *Server) collectionOrError(w http.ResponseWriter, r *http.Request) (core.Collection, bool) {
	name, err := parseCollection(r)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "collezione sconosciuta: usa in oppure out")
		return "", false
	}
	return name, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	records := s.registry.Load(r.Context(), name)
	writeJSON(w, r, http.StatusOK, listResponse{
		Collection: name,
		Records:    records,
		Total:      core.TotalAll(records),
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidBodyForm.Error())
		return
	}
	rec, err := ParseRecord(p, s.now())
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if !s.registry.Add(r.Context(), name, rec) {
		writeError(w, r, http.StatusInternalServerError, "impossibile salvare il movimento")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record added",
		log.FieldCollection, name.String(),
		log.FieldRecordType, rec.Type,
		log.FieldAmount, rec.Amount.String())
	writeJSON(w, r, http.StatusCreated, recordResponse{Collection: name, Record: rec})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidBodyForm.Error())
		return
	}
	rec, err := ParseRecord(p, s.now())
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if !s.registry.ReplaceAt(r.Context(), name, index, rec) {
		s.mutationFailed(w, r, name, index)
		return
	}
	writeJSON(w, r, http.StatusOK, recordResponse{Collection: name, Index: &index, Record: rec})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !s.registry.DeleteAt(r.Context(), name, index) {
		s.mutationFailed(w, r, name, index)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutationFailed tells an index that is out of range apart from a storage
// failure by looking at the collection again.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, name core.Collection, index int) {
	if index >= len(s.registry.Load(r.Context(), name)) {
		writeError(w, r, http.StatusNotFound, "movimento non trovato")
		return
	}
	writeError(w, r, http.StatusInternalServerError, "impossibile salvare il movimento")
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(r.URL.Query().Get("month")) == "" {
		writeJSON(w, r, http.StatusOK, totalResponse{
			Collection: name,
			Total:      s.registry.TotalAll(r.Context(), name),
		})
		return
	}

	ym, err := ParseMonthParam(r.URL.Query(), "month", s.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	mt := s.registry.MonthTotal(r.Context(), name, ym)
	writeJSON(w, r, http.StatusOK, totalResponse{
		Collection: name,
		Month:      &ym,
		Total:      mt.Total,
		Matched:    &mt.Matched,
		Skipped:    mt.Skipped,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	name, ok := s.collectionOrError(w, r)
	if !ok {
		return
	}
	period := core.Month
	if v := r.URL.Query().Get("period"); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "periodo non valido: usa week, month oppure year")
			return
		}
		period = p
	}

	now := s.now()
	key := cache.Key(name.String(), "summary", string(period), now.Format("2006-01-02"))
	if summary, hit := s.summaryView.Get(key); hit {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, r, http.StatusOK, summary)
		return
	}
	gen := s.summaryView.Generation(name.String())
	summary := s.registry.Summary(r.Context(), name, period, now)
	s.summaryView.Store(name.String(), gen, key, summary)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	ym, err := ParseMonthParam(r.URL.Query(), "month", s.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	size, err := ParseSizeParam(r.URL.Query(), s.windowSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, s.registry.Organize(r.Context(), ym, size))
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	ym, err := core.ParseYearMonth(chi.URLParam(r, "yearMonth"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidMonth.Error())
		return
	}
	entries := s.registry.MonthEntries(r.Context(), ym)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"month":   ym,
		"entries": entries,
	})
}

func (s *Server) handleYearReport(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.registry.YearReport(r.Context(), year)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to build year report",
			log.FieldError, err.Error())
		writeError(w, r, http.StatusServiceUnavailable, "report non disponibile")
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}
