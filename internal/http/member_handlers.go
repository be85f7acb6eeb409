package http

import (
	"context"
	"errors"
	"net/http"

	"gastos/internal/members"
)

type memberRequest struct {
	Nombre string `json:"nombre"`
}

type membersResponse struct {
	Miembros []string `json:"miembros"`
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(membersResponse{Miembros: s.deps.Members.List()}).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Members.Add(req.Nombre); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(membersResponse{Miembros: s.deps.Members.List()}).Write(w)
}

func (s *Server) handleRenameMember(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req memberRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Members.Rename(name, sanitizeInput(req.Nombre)); err != nil {
		s.writeMemberError(w, r, err, name)
		return
	}
	NewJSONResponse().Body(membersResponse{Miembros: s.deps.Members.List()}).Write(w)
}

// handleRemoveMember requires ?confirm=true; without it the registry
// refuses and the client is expected to ask the user and retry.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	confirmed := ParseBool(r.URL.Query().Get("confirm"))
	confirm := members.ConfirmFunc(func(context.Context, string) bool { return confirmed })

	if err := s.deps.Members.Remove(r.Context(), name, confirm); err != nil {
		s.writeMemberError(w, r, err, name)
		return
	}
	NewJSONResponse().Body(membersResponse{Miembros: s.deps.Members.List()}).Write(w)
}

// writeMemberError adds the closest existing member to unknown-member errors.
func (s *Server) writeMemberError(w http.ResponseWriter, r *http.Request, err error, name string) {
	if errors.Is(err, members.ErrUnknownMember) {
		apiErr := APIError{Error: err.Error(), Code: "validation"}
		if suggestion, ok := s.deps.Members.Suggest(name); ok {
			apiErr.Suggestion = suggestion
		}
		NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(apiErr).Write(w)
		return
	}
	s.writeError(w, r, err)
}

type darkModeBody struct {
	ModoOscuro bool `json:"modoOscuro"`
}

func (s *Server) handleGetDarkMode(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(darkModeBody{ModoOscuro: s.deps.Prefs.DarkMode()}).Write(w)
}

func (s *Server) handleSetDarkMode(w http.ResponseWriter, r *http.Request) {
	var req darkModeBody
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Prefs.SetDarkMode(req.ModoOscuro); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(darkModeBody{ModoOscuro: s.deps.Prefs.DarkMode()}).Write(w)
}
