package http

import (
	"net/http"
	"strconv"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/export"
	applog "gastos/internal/log"
)

type expensesResponse struct {
	Gastos []core.Expense `json:"gastos"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if month != nil {
		exps = aggregate.FilterByMonth(exps, *month)
	}
	exps = aggregate.FilterExpenses(exps, ParseFilter(r.URL.Query()))
	NewJSONResponse().Body(expensesResponse{Gastos: nonNil(exps)}).Write(w)
}

// handleCreateExpense splits the amount across the selected members.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, ms, err := req.toExpense(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.CreateSplit(r.Context(), e, ms)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.structured.LogExpensesWritten(r.Context(), applog.OpCreate, account(r.Context()), len(ms))
	NewJSONResponse().Status(http.StatusCreated).Body(expensesResponse{Gastos: nonNil(exps)}).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	e, ms, err := req.toExpense(true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.Update(r.Context(), id, e, ms)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.structured.LogExpensesWritten(r.Context(), applog.OpUpdate, account(r.Context()), 1)
	NewJSONResponse().Body(expensesResponse{Gastos: nonNil(exps)}).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	exps, err := s.deps.Expenses.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.structured.LogExpensesWritten(r.Context(), applog.OpDelete, account(r.Context()), 1)
	NewJSONResponse().Body(expensesResponse{Gastos: nonNil(exps)}).Write(w)
}

func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request) {
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps = aggregate.FilterExpenses(exps, ParseFilter(r.URL.Query()))
	groups := aggregate.GroupByMonthAndWeek(exps, s.deps.Locale)
	if groups == nil {
		groups = []aggregate.MonthGroup{}
	}
	NewJSONResponse().Body(map[string]any{"meses": groups}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseViewQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(aggregate.Summarize(exps, mode, s.today())).Write(w)
}

// handleSeries returns the chart series; granularity overrides the one the
// view implies.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := ParseViewQuery(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, explicit, err := ParseGranularity(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var series aggregate.Series
	if explicit {
		series = aggregate.SumByCalendarPeriod(exps, g)
	} else {
		series = aggregate.SeriesForView(exps, mode)
	}
	NewJSONResponse().Body(series).Write(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(aggregate.CurrentMonthMetrics(exps, s.today())).Write(w)
}

type monthOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// handleMonths lists the months that have records, most recent first.
func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months := aggregate.DistinctMonths(exps)
	out := make([]monthOption, 0, len(months))
	for _, m := range months {
		out = append(out, monthOption{Key: m.Key(), Label: m.Label(s.deps.Locale)})
	}
	NewJSONResponse().Body(map[string]any{"meses": out}).Write(w)
}

// handleExport downloads all records, or one month's with ?mes=YYYY-MM.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exps, err := s.deps.Expenses.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := export.Workbook(exps, month, s.deps.Locale)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Export generated",
		applog.FieldOperation, applog.OpExport,
		"file", file.Name,
		applog.FieldCount, file.Rows)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func nonNil(exps []core.Expense) []core.Expense {
	if exps == nil {
		return []core.Expense{}
	}
	return exps
}
