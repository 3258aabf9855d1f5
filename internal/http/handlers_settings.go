package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"registro/internal/core"
	"registro/internal/log"
	"registro/internal/settings"
	"registro/internal/theme"
)

type (
	budgetResponse struct {
		Kind   settings.BudgetKind `json:"kind"`
		Amount decimal.Decimal     `json:"amount"`
	}

	budgetStatusResponse struct {
		Kind settings.BudgetKind `json:"kind"`
		core.BudgetStatus
		ProgressPct float64 `json:"progress_pct"`
	}

	themeResponse struct {
		Name    string         `json:"name"`
		Index   int            `json:"index"`
		Colors  []string       `json:"colors"`
		Presets []theme.Preset `json:"presets"`
	}

	conversionResponse struct {
		Amount decimal.Decimal `json:"amount"`
		From   string          `json:"from"`
		To     string          `json:"to"`
		Result decimal.Decimal `json:"result"`
	}
)

func (s *Server) budgetKindOrError(w http.ResponseWriter, r *http.Request) (settings.BudgetKind, bool) {
	kind, err := settings.ParseBudgetKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "budget sconosciuto: usa monthly oppure yearly")
		return "", false
	}
	return kind, true
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.budgetKindOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, budgetResponse{Kind: kind, Amount: s.settings.Budget(r.Context(), kind)})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.budgetKindOrError(w, r)
	if !ok {
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidBodyForm.Error())
		return
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, errInvalidAmount.Error())
		return
	}
	if err := s.settings.SetBudget(r.Context(), kind, amount); err != nil {
		s.storageError(w, r, "Failed to save budget", err)
		return
	}
	writeJSON(w, r, http.StatusOK, budgetResponse{Kind: kind, Amount: amount})
}

func (s *Server) handleResetBudget(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.budgetKindOrError(w, r)
	if !ok {
		return
	}
	if err := s.settings.ResetBudget(r.Context(), kind); err != nil {
		s.storageError(w, r, "Failed to reset budget", err)
		return
	}
	writeJSON(w, r, http.StatusOK, budgetResponse{Kind: kind, Amount: decimal.Zero})
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.budgetKindOrError(w, r)
	if !ok {
		return
	}
	st := s.settings.BudgetStatus(r.Context(), kind, s.now())
	writeJSON(w, r, http.StatusOK, budgetStatusResponse{
		Kind:         kind,
		BudgetStatus: st,
		ProgressPct:  st.ProgressPct(),
	})
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.settings.Preferences(r.Context())
	if err != nil {
		s.storageError(w, r, "Failed to read preferences", err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := s.settings.Preference(r.Context(), key)
	switch {
	case errors.Is(err, settings.ErrUnknownPreference):
		writeError(w, r, http.StatusNotFound, "impostazione sconosciuta")
		return
	case err != nil:
		s.storageError(w, r, "Failed to read preference", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"key": key, "value": v})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidBodyForm.Error())
		return
	}
	if !p.Has("value") {
		writeError(w, r, http.StatusUnprocessableEntity, "valore obbligatorio")
		return
	}

	err := s.settings.SetPreference(r.Context(), key, p.Get("value"))
	switch {
	case errors.Is(err, settings.ErrUnknownPreference):
		writeError(w, r, http.StatusNotFound, "impostazione sconosciuta")
		return
	case errors.Is(err, settings.ErrInvalidPreference):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.storageError(w, r, "Failed to save preference", err)
		return
	}
	v, err := s.settings.Preference(r.Context(), key)
	if err != nil {
		s.storageError(w, r, "Failed to read preference", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"key": key, "value": v})
}

// handleResetSettings wipes the whole store and restores the default theme.
func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Reset(r.Context()); err != nil {
		s.storageError(w, r, "Failed to reset data", err)
		return
	}
	if err := s.theme.SetByIndex(r.Context(), 0); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to restore default theme",
			log.FieldError, err.Error())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) themeResponse() themeResponse {
	p, i := s.theme.Current()
	return themeResponse{Name: p.Name, Index: i, Colors: s.theme.Colors(), Presets: theme.Presets}
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.themeResponse())
}

// handleSetTheme selects a preset by name, index or first color, in that
// order of precedence.
func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidBodyForm.Error())
		return
	}

	var err error
	switch {
	case p.Get("name") != "":
		name := p.Get("name")
		if preset, _ := theme.ByName(name); !strings.EqualFold(preset.Name, name) {
			writeError(w, r, http.StatusUnprocessableEntity, "tema sconosciuto")
			return
		}
		err = s.theme.SetByName(r.Context(), name)
	case p.Get("index") != "":
		i, convErr := strconv.Atoi(p.Get("index"))
		if convErr != nil || i < 0 || i >= len(theme.Presets) {
			writeError(w, r, http.StatusUnprocessableEntity, "indice tema non valido")
			return
		}
		err = s.theme.SetByIndex(r.Context(), i)
	case p.Get("color") != "":
		err = s.theme.SetByColor(r.Context(), p.Get("color"))
	default:
		writeError(w, r, http.StatusUnprocessableEntity, "indica name, index oppure color")
		return
	}
	if err != nil {
		s.storageError(w, r, "Failed to save theme", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.themeResponse())
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, core.Currencies)
}

// handleConvert converts amount from one currency to another. from defaults
// to the preferred currency.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidAmount.Error())
		return
	}
	from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
	if from == "" {
		if from, err = s.settings.Preference(r.Context(), settings.Currency); err != nil {
			s.storageError(w, r, "Failed to read preference", err)
			return
		}
	}
	to := strings.ToUpper(strings.TrimSpace(q.Get("to")))
	if to == "" {
		writeError(w, r, http.StatusBadRequest, "valuta di destinazione obbligatoria")
		return
	}

	result, err := core.Convert(amount, from, to)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "valuta sconosciuta")
		return
	}
	writeJSON(w, r, http.StatusOK, conversionResponse{
		Amount: amount,
		From:   from,
		To:     to,
		Result: result.Round(2),
	})
}

// storageError logs err and answers 500.
func (s *Server) storageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err.Error())
	writeError(w, r, http.StatusInternalServerError, "errore di archiviazione")
}
