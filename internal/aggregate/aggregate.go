// Package aggregate turns a flat expense list into the grouped, filtered
// and summed views shown on the dashboard. Every function is pure: inputs
// are never modified and no state is kept between calls.
//
// Callers are expected to pass records whose Fecha has already been
// validated; the repository service quarantines unparsable dates.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"gastos/internal/core"
	"gastos/internal/period"
)

// Granularity selects the bucket size of a time series.
type Granularity string

const (
	Monthly Granularity = "month"
	Weekly  Granularity = "week"
)

// WeekGroup holds the expenses of one ISO week inside a month.
type WeekGroup struct {
	Week     period.Week    `json:"-"`
	Label    string         `json:"label"`
	Expenses []core.Expense `json:"expenses"`
}

// MonthGroup holds the week groups of one month, in first-seen order.
type MonthGroup struct {
	Month period.Month `json:"-"`
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Weeks []WeekGroup  `json:"weeks"`
}

// GroupByMonthAndWeek partitions expenses by month label and "Semana n".
// Group order and order within a group follow the input order.
func GroupByMonthAndWeek(expenses []core.Expense, locale monday.Locale) []MonthGroup {
	groups := []MonthGroup{}
	monthIdx := map[period.Month]int{}
	weekIdx := map[period.Month]map[period.Week]int{}

	for _, e := range expenses {
		m := period.Of(e.Fecha.Time)
		w := period.WeekOf(e.Fecha.Time)

		mi, ok := monthIdx[m]
		if !ok {
			mi = len(groups)
			monthIdx[m] = mi
			weekIdx[m] = map[period.Week]int{}
			groups = append(groups, MonthGroup{Month: m, Key: m.Key(), Label: m.Label(locale)})
		}
		wi, ok := weekIdx[m][w]
		if !ok {
			wi = len(groups[mi].Weeks)
			weekIdx[m][w] = wi
			groups[mi].Weeks = append(groups[mi].Weeks, WeekGroup{Week: w, Label: w.Label()})
		}
		groups[mi].Weeks[wi].Expenses = append(groups[mi].Weeks[wi].Expenses, e)
	}
	return groups
}

// InView reports whether e falls in the window selected by mode around ref.
func InView(e core.Expense, mode core.ViewMode, ref time.Time) bool {
	switch mode {
	case core.ViewMonth:
		return period.Of(ref).Contains(e.Fecha.Time)
	case core.ViewWeek:
		return period.WeekOf(ref) == period.WeekOf(e.Fecha.Time)
	}
	return true
}

// PersonTotal is the sum of one member's expenses.
type PersonTotal struct {
	Persona string  `json:"persona"`
	Total   float64 `json:"total"`
}

// PersonTotals keeps members in first-seen order.
type PersonTotals []PersonTotal

// Total sums every member's total.
func (p PersonTotals) Total() float64 {
	var sum float64
	for _, t := range p {
		sum += t.Total
	}
	return sum
}

// Map returns the totals keyed by member.
func (p PersonTotals) Map() map[string]float64 {
	out := make(map[string]float64, len(p))
	for _, t := range p {
		out[t.Persona] = t.Total
	}
	return out
}

// SumByPerson totals expenses per member inside the view window. special
// selects which table is built: false keeps only normal entries, true
// keeps only special ones.
func SumByPerson(expenses []core.Expense, mode core.ViewMode, ref time.Time, special bool) PersonTotals {
	totals := PersonTotals{}
	idx := map[string]int{}
	for _, e := range expenses {
		if e.PartidaEspecial != special || !InView(e, mode, ref) {
			continue
		}
		p := e.PersonaOrUnassigned()
		i, ok := idx[p]
		if !ok {
			i = len(totals)
			idx[p] = i
			totals = append(totals, PersonTotal{Persona: p})
		}
		totals[i].Total += e.Amount()
	}
	return totals
}

// ViewSummary combines the normal and special tables of one view.
type ViewSummary struct {
	Mode         core.ViewMode `json:"vista"`
	Normal       PersonTotals  `json:"totales"`
	Special      PersonTotals  `json:"partidasEspeciales"`
	TotalGlobal  float64       `json:"totalGlobal"`
	TotalSpecial float64       `json:"totalPartidasEspeciales"`
}

// Summarize builds both per-person tables for mode around ref.
func Summarize(expenses []core.Expense, mode core.ViewMode, ref time.Time) ViewSummary {
	normal := SumByPerson(expenses, mode, ref, false)
	special := SumByPerson(expenses, mode, ref, true)
	return ViewSummary{
		Mode:         mode,
		Normal:       normal,
		Special:      special,
		TotalGlobal:  normal.Total(),
		TotalSpecial: special.Total(),
	}
}

// Series is a chart-ready time series with aligned labels and totals.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// SumByCalendarPeriod sums all expenses per "YYYY-MM" or "YYYY-Www" key,
// sorted ascending.
func SumByCalendarPeriod(expenses []core.Expense, g Granularity) Series {
	sums := map[string]float64{}
	for _, e := range expenses {
		var key string
		if g == Weekly {
			key = period.WeekOf(e.Fecha.Time).Key()
		} else {
			key = period.Of(e.Fecha.Time).Key()
		}
		sums[key] += e.Amount()
	}

	labels := make([]string, 0, len(sums))
	for k := range sums {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	data := make([]float64, len(labels))
	for i, k := range labels {
		data[i] = sums[k]
	}
	return Series{Labels: labels, Data: data}
}

// SeriesForView charts weekly totals in the week view and monthly otherwise.
func SeriesForView(expenses []core.Expense, mode core.ViewMode) Series {
	if mode == core.ViewWeek {
		return SumByCalendarPeriod(expenses, Weekly)
	}
	return SumByCalendarPeriod(expenses, Monthly)
}

// Metrics describes spending in the current month.
type Metrics struct {
	TotalSpent    float64       `json:"totalGastado"`
	DailyAverage  float64       `json:"mediaDiaria"`
	DaysRemaining int           `json:"diasRestantes"`
	TopExpense    *core.Expense `json:"gastoMayor"`
	DaysInMonth   int           `json:"diasEnMes"`
	DayOfMonth    int           `json:"diaActual"`
}

// CurrentMonthMetrics computes the dashboard metrics over the normal
// expenses of today's month. The first record with the highest amount wins.
func CurrentMonthMetrics(expenses []core.Expense, today time.Time) Metrics {
	month := period.Of(today)
	m := Metrics{
		DaysInMonth: month.Days(),
		DayOfMonth:  today.Day(),
	}
	m.DaysRemaining = m.DaysInMonth - m.DayOfMonth

	for i := range expenses {
		e := expenses[i]
		if e.PartidaEspecial || !month.Contains(e.Fecha.Time) {
			continue
		}
		m.TotalSpent += e.Amount()
		if m.TopExpense == nil || e.Amount() > m.TopExpense.Amount() {
			top := e
			m.TopExpense = &top
		}
	}
	if m.DayOfMonth > 0 {
		m.DailyAverage = m.TotalSpent / float64(m.DayOfMonth)
	}
	return m
}

// Filter holds the list filters. Zero values match everything.
type Filter struct {
	Text        string
	Person      string
	SpecialOnly bool
}

// Match reports whether e passes every filter.
func (f Filter) Match(e core.Expense) bool {
	if f.Text != "" && !strings.Contains(strings.ToLower(e.Descripcion), strings.ToLower(f.Text)) {
		return false
	}
	if f.Person != "" && e.Persona != f.Person {
		return false
	}
	if f.SpecialOnly && !e.PartidaEspecial {
		return false
	}
	return true
}

// FilterExpenses keeps the expenses matching f, preserving order.
func FilterExpenses(expenses []core.Expense, f Filter) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByMonth keeps the expenses dated in m.
func FilterByMonth(expenses []core.Expense, m period.Month) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if m.Contains(e.Fecha.Time) {
			out = append(out, e)
		}
	}
	return out
}

// DistinctMonths lists the months present in expenses, most recent first.
func DistinctMonths(expenses []core.Expense) []period.Month {
	seen := map[period.Month]struct{}{}
	months := []period.Month{}
	for _, e := range expenses {
		m := period.Of(e.Fecha.Time)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[j].Before(months[i]) })
	return months
}
