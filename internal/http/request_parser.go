// Package http provides the JSON API server and its handlers.
//
// This file implements request body decoding and query parameter parsing
// shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/draft"
	"gastos/internal/period"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

// DecodeJSON reads a JSON body into dst, rejecting unknown fields and
// trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

// expenseRequest is the body of POST and PUT /api/expenses. Cantidad
// accepts a number or a numeric string.
type expenseRequest struct {
	Fecha             string   `json:"fecha"`
	Descripcion       string   `json:"descripcion"`
	Cantidad          any      `json:"cantidad"`
	Personas          []string `json:"personas"`
	PartidaEspecial   bool     `json:"partidaEspecial"`
	CategoriaEspecial string   `json:"categoriaEspecial"`
}

// toDraft routes the request through the form validation.
func (req expenseRequest) toDraft() draft.Draft {
	personas := make([]string, 0, len(req.Personas))
	for _, p := range req.Personas {
		if p = sanitizeInput(p); p != "" {
			personas = append(personas, p)
		}
	}
	return draft.Draft{
		Fecha:             strings.TrimSpace(req.Fecha),
		Descripcion:       sanitizeInput(req.Descripcion),
		Cantidad:          stringValue(req.Cantidad),
		Personas:          personas,
		PartidaEspecial:   req.PartidaEspecial,
		CategoriaEspecial: sanitizeInput(req.CategoriaEspecial),
	}
}

// toExpense validates the request as the form would. Updates may clear the
// persona, so allowEmpty skips the at-least-one-member rule.
func (req expenseRequest) toExpense(allowEmpty bool) (core.Expense, []string, error) {
	d := req.toDraft()
	if allowEmpty && len(d.Personas) == 0 {
		d.Personas = []string{""}
		e, _, err := d.Submit()
		return e, nil, err
	}
	return d.Submit()
}

// ParseViewQuery reads "vista"; empty means total.
func ParseViewQuery(q url.Values) (core.ViewMode, error) {
	return core.ParseViewMode(q.Get("vista"))
}

// ParseMonthQuery reads "mes" as "YYYY-MM". Absent yields nil.
func ParseMonthQuery(q url.Values) (*period.Month, error) {
	v := strings.TrimSpace(q.Get("mes"))
	if v == "" {
		return nil, nil
	}
	m, err := period.ParseMonthKey(v)
	if err != nil {
		return nil, fmt.Errorf("%w: mes %q", core.ErrInvalidDate, v)
	}
	return &m, nil
}

// ParseGranularity reads "granularity"; empty means the view's default.
func ParseGranularity(q url.Values) (aggregate.Granularity, bool, error) {
	switch g := aggregate.Granularity(strings.ToLower(strings.TrimSpace(q.Get("granularity")))); g {
	case "":
		return "", false, nil
	case aggregate.Monthly, aggregate.Weekly:
		return g, true, nil
	default:
		return "", false, fmt.Errorf("%w: granularity %q", core.ErrInvalidViewMode, g)
	}
}

// ParseFilter reads the list filters "q", "persona" and "especiales".
func ParseFilter(q url.Values) aggregate.Filter {
	return aggregate.Filter{
		Text:        sanitizeInput(q.Get("q")),
		Person:      sanitizeInput(q.Get("persona")),
		SpecialOnly: ParseBool(q.Get("especiales")),
	}
}

// ParseBool accepts the usual true spellings; anything else is false.
func ParseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
