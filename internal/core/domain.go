package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Unassigned is the persona used in totals for records without a member.
const Unassigned = "Sin asignar"

// DateLayout is the storage and wire format of Expense.Fecha.
const DateLayout = "2006-01-02"

const (
	ViewTotal ViewMode = "total"
	ViewMonth ViewMode = "mes"
	ViewWeek  ViewMode = "semana"
)

// Categories offered for special entries. "Otros" accepts free text.
const (
	CategoryGifts    = "Regalos"
	CategoryHolidays = "Vacaciones"
	CategoryOther    = "Otros"
)

type (
	// ViewMode selects the time window used when summing by person.
	ViewMode string

	Date struct {
		time.Time
	}

	Expense struct {
		ID                string  `json:"id"`
		Fecha             Date    `json:"fecha"`
		Descripcion       string  `json:"descripcion"`
		Cantidad          float64 `json:"cantidad"`
		Persona           string  `json:"persona,omitempty"`
		PartidaEspecial   bool    `json:"partidaEspecial"`
		CategoriaEspecial string  `json:"categoriaEspecial,omitempty"`
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidViewMode   = errors.New("invalid view mode")
	ErrNoMembers         = errors.New("select at least one member")
)

// ParseViewMode maps the "vista" parameter to a ViewMode. Empty means total.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewTotal:
		return ViewTotal, nil
	case ViewMonth:
		return ViewMonth, nil
	case ViewWeek:
		return ViewWeek, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts only the "YYYY-MM-DD" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String renders the date as "YYYY-MM-DD", or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PersonaOrUnassigned returns the member name used when totalling.
func (e Expense) PersonaOrUnassigned() string {
	if strings.TrimSpace(e.Persona) == "" {
		return Unassigned
	}
	return e.Persona
}

// Amount returns Cantidad with NaN and infinities mapped to 0.
func (e Expense) Amount() float64 {
	if math.IsNaN(e.Cantidad) || math.IsInf(e.Cantidad, 0) {
		return 0
	}
	return e.Cantidad
}

// Normalize trims text fields and drops the category of non-special entries.
func (e Expense) Normalize() Expense {
	e.Descripcion = strings.TrimSpace(e.Descripcion)
	e.Persona = strings.TrimSpace(e.Persona)
	e.CategoriaEspecial = strings.TrimSpace(e.CategoriaEspecial)
	if !e.PartidaEspecial {
		e.CategoriaEspecial = ""
	}
	return e
}

func (e Expense) Validate() error {
	if err := e.Fecha.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Descripcion)) == 0 {
		return ErrEmptyDescription
	}
	if math.IsNaN(e.Cantidad) || math.IsInf(e.Cantidad, 0) {
		return ErrInvalidAmount
	}
	return nil
}
