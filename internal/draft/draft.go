// Package draft holds the state of the expense form between requests: the
// fields typed so far, the members ticked for splitting, and which record
// is being edited.
package draft

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gastos/internal/core"
)

var ErrMissingField = errors.New("required field missing")

// Draft is the serializable form state.
type Draft struct {
	Fecha             string   `json:"fecha"`
	Descripcion       string   `json:"descripcion"`
	Cantidad          string   `json:"cantidad"`
	Personas          []string `json:"personasSeleccionadas"`
	PartidaEspecial   bool     `json:"partidaEspecial"`
	CategoriaEspecial string   `json:"categoriaEspecial,omitempty"`
	EditingID         string   `json:"editandoId,omitempty"`
}

// New returns an empty form dated today.
func New(today time.Time) Draft {
	return Draft{Fecha: core.DateOf(today).String(), Personas: []string{}}
}

// Editing reports whether the form edits an existing record.
func (d Draft) Editing() bool {
	return d.EditingID != ""
}

// Selected reports whether name is ticked.
func (d Draft) Selected(name string) bool {
	for _, p := range d.Personas {
		if p == name {
			return true
		}
	}
	return false
}

// Toggle ticks or unticks name.
func (d *Draft) Toggle(name string) {
	for i, p := range d.Personas {
		if p == name {
			d.Personas = append(d.Personas[:i:i], d.Personas[i+1:]...)
			return
		}
	}
	d.Personas = append(d.Personas, name)
}

// LoadForEdit fills the form from a stored expense; its single persona
// becomes the selection.
func (d *Draft) LoadForEdit(e core.Expense) {
	*d = Draft{
		Fecha:             e.Fecha.String(),
		Descripcion:       e.Descripcion,
		Cantidad:          formatAmount(e.Cantidad),
		Personas:          []string{},
		PartidaEspecial:   e.PartidaEspecial,
		CategoriaEspecial: e.CategoriaEspecial,
		EditingID:         e.ID,
	}
	if e.Persona != "" {
		d.Personas = append(d.Personas, e.Persona)
	}
}

// RemoveMember drops name from the selection.
func (d *Draft) RemoveMember(name string) {
	if d.Selected(name) {
		d.Toggle(name)
	}
}

// RenameMember replaces oldName in the selection.
func (d *Draft) RenameMember(oldName, newName string) {
	for i, p := range d.Personas {
		if p == oldName {
			d.Personas[i] = newName
		}
	}
}

// Submit validates the form and returns the expense plus the selected
// members. Nothing is written on error.
func (d Draft) Submit() (core.Expense, []string, error) {
	var missing []string
	if strings.TrimSpace(d.Fecha) == "" {
		missing = append(missing, "fecha")
	}
	if strings.TrimSpace(d.Descripcion) == "" {
		missing = append(missing, "descripcion")
	}
	if strings.TrimSpace(d.Cantidad) == "" {
		missing = append(missing, "cantidad")
	}
	if len(missing) > 0 {
		return core.Expense{}, nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	if len(d.Personas) == 0 {
		return core.Expense{}, nil, core.ErrNoMembers
	}

	fecha, err := core.ParseDate(d.Fecha)
	if err != nil {
		return core.Expense{}, nil, err
	}
	amount, err := core.ParseAmount(d.Cantidad)
	if err != nil {
		return core.Expense{}, nil, err
	}

	e := core.Expense{
		ID:                d.EditingID,
		Fecha:             fecha,
		Descripcion:       d.Descripcion,
		Cantidad:          amount,
		PartidaEspecial:   d.PartidaEspecial,
		CategoriaEspecial: d.CategoriaEspecial,
	}.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, nil, err
	}
	return e, append([]string(nil), d.Personas...), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Store keeps one draft per signed-in account and follows member renames
// and removals.
type Store struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	now    func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{drafts: map[string]*Draft{}, now: now}
}

// Get returns the account's draft, starting a fresh one if needed.
func (s *Store) Get(account string) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(account)
}

func (s *Store) copyLocked(account string) Draft {
	d, ok := s.drafts[account]
	if !ok {
		fresh := New(s.now())
		d = &fresh
		s.drafts[account] = d
	}
	out := *d
	out.Personas = append([]string{}, d.Personas...)
	return out
}

// Put replaces the account's draft.
func (s *Store) Put(account string, d Draft) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Personas == nil {
		d.Personas = []string{}
	}
	s.drafts[account] = &d
	return s.copyLocked(account)
}

// Update applies fn to the account's draft.
func (s *Store) Update(account string, fn func(*Draft)) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyLocked(account)
	fn(s.drafts[account])
	return s.copyLocked(account)
}

// Reset discards the account's draft.
func (s *Store) Reset(account string) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, account)
	return s.copyLocked(account)
}

// MemberRemoved implements members.Observer.
func (s *Store) MemberRemoved(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		d.RemoveMember(name)
	}
}

// MemberRenamed implements members.Observer.
func (s *Store) MemberRenamed(oldName, newName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		d.RenameMember(oldName, newName)
	}
}
