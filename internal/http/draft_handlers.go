package http

import (
	"fmt"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/draft"
	applog "gastos/internal/log"
	"gastos/internal/members"
)

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.deps.Drafts.Get(account(r.Context()))).Write(w)
}

// handlePutDraft replaces the typed fields; the body has the shape GET
// returns. The record being edited can only change through the edit
// endpoint.
func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var next draft.Draft
	if err := DecodeJSON(w, r, &next); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	next = expenseRequest{
		Fecha:             next.Fecha,
		Descripcion:       next.Descripcion,
		Cantidad:          next.Cantidad,
		Personas:          next.Personas,
		PartidaEspecial:   next.PartidaEspecial,
		CategoriaEspecial: next.CategoriaEspecial,
	}.toDraft()
	d := s.deps.Drafts.Update(account(r.Context()), func(d *draft.Draft) {
		next.EditingID = d.EditingID
		*d = next
	})
	NewJSONResponse().Body(d).Write(w)
}

type toggleRequest struct {
	Persona string `json:"persona"`
}

func (s *Server) handleToggleDraft(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	name := sanitizeInput(req.Persona)
	if !s.deps.Members.Contains(name) {
		s.writeMemberError(w, r, fmt.Errorf("%w: %s", members.ErrUnknownMember, name), name)
		return
	}
	d := s.deps.Drafts.Update(account(r.Context()), func(d *draft.Draft) { d.Toggle(name) })
	NewJSONResponse().Body(d).Write(w)
}

// handleEditDraft loads a stored record into the form.
func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Expenses.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := s.deps.Drafts.Update(account(r.Context()), func(d *draft.Draft) { d.LoadForEdit(e) })
	NewJSONResponse().Body(d).Write(w)
}

type submitResponse struct {
	Gastos   []core.Expense `json:"gastos"`
	Borrador draft.Draft    `json:"borrador"`
}

// handleSubmitDraft saves the form: an update when editing, a split create
// otherwise. The form is reset only after a successful write.
func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	acct := account(r.Context())
	d := s.deps.Drafts.Get(acct)
	e, ms, err := d.Submit()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var exps []core.Expense
	op, count := applog.OpCreate, len(ms)
	if d.Editing() {
		op, count = applog.OpUpdate, 1
		exps, err = s.deps.Expenses.Update(r.Context(), d.EditingID, e, ms)
	} else {
		exps, err = s.deps.Expenses.CreateSplit(r.Context(), e, ms)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.structured.LogExpensesWritten(r.Context(), op, acct, count)

	status := http.StatusCreated
	if op == applog.OpUpdate {
		status = http.StatusOK
	}
	NewJSONResponse().Status(status).Body(submitResponse{
		Gastos:   nonNil(exps),
		Borrador: s.deps.Drafts.Reset(acct),
	}).Write(w)
}

func (s *Server) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.deps.Drafts.Reset(account(r.Context()))).Write(w)
}
