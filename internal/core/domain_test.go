package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.January || d.Day() != 5 {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"", "05/01/2025", "2025-13-01", "garbage"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	e := Expense{ID: "x", Fecha: NewDate(2025, 2, 1), Descripcion: "pan", Cantidad: 3}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Expense
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Fecha.String() != "2025-02-01" {
		t.Fatalf("expected 2025-02-01, got %q (json %s)", back.Fecha.String(), b)
	}
}

func TestParseViewMode(t *testing.T) {
	cases := map[string]ViewMode{"": ViewTotal, "total": ViewTotal, "mes": ViewMonth, "SEMANA": ViewWeek}
	for in, want := range cases {
		got, err := ParseViewMode(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %q, got %q (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseViewMode("year"); !errors.Is(err, ErrInvalidViewMode) {
		t.Fatalf("expected ErrInvalidViewMode, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	goods := []Expense{
		{Fecha: NewDate(2025, 1, 1), Descripcion: "ok", Cantidad: 10},
		{Fecha: NewDate(2025, 1, 1), Descripcion: "devolución", Cantidad: -25},
		{Fecha: NewDate(2025, 1, 1), Descripcion: strings.Repeat("x", 500), Cantidad: 1},
	}
	for i, e := range goods {
		if err := e.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	bads := []Expense{
		{Fecha: Date{}, Descripcion: "a", Cantidad: 1},
		{Fecha: NewDate(2025, 1, 1), Descripcion: "  ", Cantidad: 1},
		{Fecha: NewDate(2025, 1, 1), Descripcion: "a", Cantidad: math.Inf(-1)},
		{Fecha: NewDate(2025, 1, 1), Descripcion: "a", Cantidad: math.NaN()},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseHelpers(t *testing.T) {
	e := Expense{Cantidad: math.NaN()}
	if e.Amount() != 0 {
		t.Fatalf("NaN amount should count as 0")
	}
	if e.PersonaOrUnassigned() != Unassigned {
		t.Fatalf("expected %q", Unassigned)
	}
	n := Expense{Descripcion: " x ", CategoriaEspecial: "Regalos"}.Normalize()
	if n.Descripcion != "x" || n.CategoriaEspecial != "" {
		t.Fatalf("unexpected normalize result %+v", n)
	}
}
