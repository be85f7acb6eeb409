package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/auth"
	"gastos/internal/draft"
	applog "gastos/internal/log"
	"gastos/internal/members"
	"gastos/internal/prefs"
	"gastos/internal/services"
	"gastos/internal/store"
	"gastos/internal/store/memory"
)

const testSecret = "test-secret-at-least-16"

type testEnv struct {
	srv   *Server
	store *memory.Store
	token string
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }

	mem := memory.New([]string{"ana@example.com"})
	kv, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	registry, err := members.NewRegistry(kv)
	require.NoError(t, err)
	drafts := draft.NewStore(now)
	registry.Subscribe(drafts)

	jwt := auth.NewJWTManager(testSecret, time.Hour)
	deps := Deps{
		Expenses:           services.NewExpenseService(mem),
		Members:            registry,
		Drafts:             drafts,
		Prefs:              kv,
		Gate:               auth.NewGate(mem, jwt),
		JWT:                jwt,
		Passwords:          auth.NewPasswordAuthenticator(mem),
		Now:                now,
		Logger:             applog.New(applog.Config{Level: applog.DefaultConfig().Level, Format: "text", Output: io.Discard}),
		LoginRatePerMinute: 3,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	token, _, err := jwt.Generate(auth.Identity{Email: "ana@example.com", DisplayName: "Ana", Method: auth.MethodPassword})
	require.NoError(t, err)
	return &testEnv{srv: srv, store: mem, token: token}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, target, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "203.0.113.7:4321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doAs(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.doAs(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.srv.deps.Ready = func(context.Context) error { return errors.New("db down") }
	rec = env.doAs(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doAs(t, "", http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doAs(t, "garbage", http.MethodGet, "/api/expenses", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: env.token})
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[map[string]any](t, rr)
	assert.Equal(t, "ana@example.com", me["email"])
	assert.Equal(t, "Ana", me["displayName"])
}

func TestCreateExpenseSplitsAcrossMembers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"fecha":       "2025-01-10",
		"descripcion": "Cena",
		"cantidad":    "30",
		"personas":    []string{"Paolo", "Stfy", "Pan"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[expensesResponse](t, rec)
	require.Len(t, got.Gastos, 3)
	for _, e := range got.Gastos {
		assert.Equal(t, "Cena (dividido entre 3)", e.Descripcion)
		assert.InDelta(t, 10.0, e.Cantidad, 1e-9)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"missing description", map[string]any{"fecha": "2025-01-10", "cantidad": 5, "personas": []string{"Pan"}}, http.StatusUnprocessableEntity},
		{"no members", map[string]any{"fecha": "2025-01-10", "descripcion": "Pan", "cantidad": 5}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"fecha": "10/01/2025", "descripcion": "Pan", "cantidad": 5, "personas": []string{"Pan"}}, http.StatusUnprocessableEntity},
		{"unparsable amount", map[string]any{"fecha": "2025-01-10", "descripcion": "Pan", "cantidad": "abc", "personas": []string{"Pan"}}, http.StatusUnprocessableEntity},
		{"unknown field", map[string]any{"foo": "bar"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	records, err := env.store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateExpenseAcceptsRefundAndLongDescription(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"fecha":       "2025-01-10",
		"descripcion": strings.Repeat("devolución ", 30),
		"cantidad":    -5,
		"personas":    []string{"Pan"},
	}
	rec := env.do(t, http.MethodPost, "/api/expenses", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	records, err := env.store.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.store.AddRecord(ctx, store.Record{Fecha: "2025-01-02", Descripcion: "Luz", Cantidad: 40.0, Persona: "Pan"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPut, "/api/expenses/"+id, map[string]any{
		"fecha":       "2025-01-03",
		"descripcion": "Luz enero",
		"cantidad":    45.5,
		"personas":    []string{"Stfy", "Pan"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[expensesResponse](t, rec)
	require.Len(t, got.Gastos, 1)
	assert.Equal(t, "Stfy", got.Gastos[0].Persona)
	assert.Equal(t, "Luz enero", got.Gastos[0].Descripcion)

	rec = env.do(t, http.MethodPut, "/api/expenses/missing", map[string]any{
		"fecha": "2025-01-03", "descripcion": "x", "cantidad": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/expenses/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[expensesResponse](t, rec).Gastos)

	rec = env.do(t, http.MethodDelete, "/api/expenses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func seed(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	add := func(fecha, desc string, amount any, persona string, special bool) {
		_, err := env.store.AddRecord(ctx, store.Record{Fecha: fecha, Descripcion: desc, Cantidad: amount, Persona: persona, PartidaEspecial: special})
		require.NoError(t, err)
	}
	add("2025-01-02", "Super", 20.0, "Paolo", false)
	add("2025-01-14", "Gasolina", "30,5", "Stfy", false)
	add("2024-12-30", "Regalo", 50.0, "Pan", true)
	add("2024-11-05", "Farmacia", 10.0, "Paolo", false)
}

func TestSummaryAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodGet, "/api/summary?vista=mes", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[map[string]any](t, rec)
	assert.Equal(t, "mes", summary["vista"])
	assert.InDelta(t, 50.5, summary["totalGlobal"], 1e-9)

	rec = env.do(t, http.MethodGet, "/api/summary?vista=year", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[map[string]any](t, rec)
	assert.InDelta(t, 50.5, m["totalGastado"], 1e-9)
	assert.EqualValues(t, 31, m["diasEnMes"])
	assert.EqualValues(t, 16, m["diasRestantes"])
}

func TestSeriesGranularity(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodGet, "/api/series", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	monthly := decode[map[string][]any](t, rec)
	assert.Equal(t, []any{"2024-11", "2024-12", "2025-01"}, monthly["labels"])

	rec = env.do(t, http.MethodGet, "/api/series?vista=semana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	weekly := decode[map[string][]any](t, rec)
	assert.Contains(t, weekly["labels"], "2025-W01")

	rec = env.do(t, http.MethodGet, "/api/series?granularity=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weekly, decode[map[string][]any](t, rec))

	rec = env.do(t, http.MethodGet, "/api/series?granularity=day", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListFiltersAndMonths(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodGet, "/api/expenses?persona=Paolo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[expensesResponse](t, rec).Gastos, 2)

	rec = env.do(t, http.MethodGet, "/api/expenses?mes=2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[expensesResponse](t, rec).Gastos, 2)

	rec = env.do(t, http.MethodGet, "/api/expenses?especiales=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[expensesResponse](t, rec).Gastos, 1)

	rec = env.do(t, http.MethodGet, "/api/months", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	months := decode[map[string][]monthOption](t, rec)["meses"]
	require.Len(t, months, 3)
	assert.Equal(t, monthOption{Key: "2025-01", Label: "enero 2025"}, months[0])

	rec = env.do(t, http.MethodGet, "/api/expenses/grouped", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Semana")
}

func TestExportWorkbook(t *testing.T) {
	env := newTestEnv(t)
	seed(t, env)

	rec := env.do(t, http.MethodGet, "/api/export?mes=2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="gastos-enero-2025.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "gastos-familia-completo.xlsx")

	rec = env.do(t, http.MethodGet, "/api/export?mes=enero", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMembersEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, members.DefaultMembers, decode[membersResponse](t, rec).Miembros)

	rec = env.do(t, http.MethodPost, "/api/members", memberRequest{Nombre: "  Abuela "})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, decode[membersResponse](t, rec).Miembros, "Abuela")

	rec = env.do(t, http.MethodPost, "/api/members", memberRequest{Nombre: "Abuela"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/members/Abuela", memberRequest{Nombre: "Yaya"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[membersResponse](t, rec).Miembros, "Yaya")

	rec = env.do(t, http.MethodDelete, "/api/members/Yaya", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/members/Yaya?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode[membersResponse](t, rec).Miembros, "Yaya")

	rec = env.do(t, http.MethodDelete, "/api/members/Paolp?confirm=true", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Paolo", decode[APIError](t, rec).Suggestion)
}

func TestDraftSubmitFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-01-15", decode[draft.Draft](t, rec).Fecha)

	rec = env.do(t, http.MethodPut, "/api/draft", map[string]any{
		"fecha": "2025-01-12", "descripcion": "Cine", "cantidad": "24",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/draft/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	for _, p := range []string{"Paolo", "Stfy"} {
		rec = env.do(t, http.MethodPost, "/api/draft/toggle", toggleRequest{Persona: p})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/draft/toggle", toggleRequest{Persona: "Stfi"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Stfy", decode[APIError](t, rec).Suggestion)

	rec = env.do(t, http.MethodPost, "/api/draft/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[submitResponse](t, rec)
	require.Len(t, sub.Gastos, 2)
	assert.InDelta(t, 12.0, sub.Gastos[0].Cantidad, 1e-9)
	assert.Empty(t, sub.Borrador.Descripcion)
	assert.Empty(t, sub.Borrador.Personas)

	id := sub.Gastos[0].ID
	rec = env.do(t, http.MethodPost, "/api/draft/edit/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[draft.Draft](t, rec)
	assert.Equal(t, id, d.EditingID)
	assert.Len(t, d.Personas, 1)

	rec = env.do(t, http.MethodPost, "/api/draft/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[submitResponse](t, rec).Gastos, 2)

	rec = env.do(t, http.MethodPost, "/api/draft/edit/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDarkModePreference(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/preferences/dark-mode", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[darkModeBody](t, rec).ModoOscuro)

	rec = env.do(t, http.MethodPut, "/api/preferences/dark-mode", darkModeBody{ModoOscuro: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[darkModeBody](t, rec).ModoOscuro)
}

func TestPasswordLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.srv.deps.Passwords.Register(ctx, "ana@example.com", "Ana", "correct-horse")
	require.NoError(t, err)
	_, err = env.srv.deps.Passwords.Register(ctx, "eve@example.com", "Eve", "correct-horse")
	require.NoError(t, err)

	rec := env.doAs(t, "", http.MethodPost, "/auth/login", loginRequest{Email: "ana@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decode[sessionResponse](t, rec)
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.NotEmpty(t, sess.Token)
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, SessionCookie, rec.Result().Cookies()[0].Name)

	rec = env.doAs(t, "", http.MethodPost, "/auth/login", loginRequest{Email: "ana@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doAs(t, "", http.MethodPost, "/auth/login", loginRequest{Email: "eve@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, auth.ErrNotAuthorized.Error(), decode[APIError](t, rec).Error)

	rec = env.doAs(t, "", http.MethodPost, "/auth/login", loginRequest{Email: "ana@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doAs(t, "", http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestGoogleLoginFlowSelection(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.LoginRatePerMinute = 100 })

	rec := env.doAs(t, "", http.MethodGet, "/auth/google/login", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.srv.deps.Google = auth.NewGoogleProvider("client-id", "client-secret", "http://localhost/auth/google/callback")

	tests := []struct {
		query string
		flow  auth.Flow
	}{
		{"", auth.FlowPopup},
		{"?display-mode=browser", auth.FlowPopup},
		{"?display-mode=standalone", auth.FlowRedirect},
		{"?standalone=true", auth.FlowRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.doAs(t, "", http.MethodGet, "/auth/google/login"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[googleLoginResponse](t, rec)
			assert.Equal(t, tt.flow, got.Flow)
			assert.True(t, strings.HasPrefix(got.AuthURL, "https://accounts.google.com/"), got.AuthURL)
			assert.Contains(t, got.AuthURL, "prompt=select_account")
		})
	}

	rec = env.doAs(t, "", http.MethodGet, "/auth/google/callback?state=forged&code=x", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	state, err := env.srv.deps.JWT.GenerateState(auth.FlowRedirect)
	require.NoError(t, err)
	rec = env.doAs(t, "", http.MethodGet, "/auth/google/callback?error=access_denied&state="+state, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?error=cancelled", rec.Header().Get("Location"))
}

func TestPartialSplitReportsWrittenCount(t *testing.T) {
	env := newTestEnv(t)
	failing := &failAfterStore{ExpenseStore: env.store, okWrites: 1}
	env.srv.deps.Expenses = services.NewExpenseService(failing)

	rec := env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"fecha": "2025-01-10", "descripcion": "Hotel", "cantidad": 90, "personas": []string{"Paolo", "Stfy", "Pan"},
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, "partial_write", apiErr.Code)
	require.NotNil(t, apiErr.Written)
	assert.Equal(t, 1, *apiErr.Written)
}

type failAfterStore struct {
	store.ExpenseStore
	okWrites int
}

func (f *failAfterStore) AddRecord(ctx context.Context, r store.Record) (string, error) {
	if f.okWrites == 0 {
		return "", errors.New("disk full")
	}
	f.okWrites--
	return f.ExpenseStore.AddRecord(ctx, r)
}
