// Package firestore stores expenses in a Cloud Firestore document
// collection, the same shape the household app has always written:
// collection "gastos" for expenses and "usuariosPermitidos" for the
// allow-list. Allow-list entries are written outside the app, so lookups
// match the address as given and its lower-cased form.
package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gastos/internal/store"
)

const (
	ExpensesCollection  = "gastos"
	AllowListCollection = "usuariosPermitidos"
	UsersCollection     = "usuarios"
)

// Store is backed by a Firestore client.
type Store struct {
	client *firestore.Client
}

var (
	_ store.ExpenseStore = (*Store)(nil)
	_ store.AllowList    = (*Store)(nil)
	_ store.UserStore    = (*Store)(nil)
)

// New connects to projectID. With FIRESTORE_EMULATOR_HOST set the client
// talks to the emulator and needs no credentials.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) ListRecords(ctx context.Context) ([]store.Record, error) {
	docs, err := s.client.Collection(ExpensesCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]store.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d.Ref.ID, d.Data()))
	}
	return out, nil
}

func (s *Store) AddRecord(ctx context.Context, r store.Record) (string, error) {
	ref, _, err := s.client.Collection(ExpensesCollection).Add(ctx, toDoc(r))
	if err != nil {
		return "", fmt.Errorf("add expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved to Firestore", "id", ref.ID, "fecha", r.Fecha)
	return ref.ID, nil
}

func (s *Store) UpdateRecord(ctx context.Context, id string, r store.Record) error {
	ref := s.client.Collection(ExpensesCollection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		return notFound(id, err)
	}
	if _, err := ref.Set(ctx, toDoc(r)); err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.client.Collection(ExpensesCollection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		return notFound(id, err)
	}
	return nil
}

func (s *Store) IsAllowed(ctx context.Context, email string) (bool, error) {
	docs, err := s.client.Collection(AllowListCollection).
		Where("email", "in", emailVariants(email)).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return false, fmt.Errorf("check allow-list: %w", err)
	}
	return len(docs) > 0, nil
}

func emailVariants(email string) []string {
	raw := strings.TrimSpace(email)
	norm := store.NormalizeEmail(email)
	if raw == norm {
		return []string{norm}
	}
	return []string{norm, raw}
}

func (s *Store) Allow(ctx context.Context, email string) error {
	email = store.NormalizeEmail(email)
	if ok, err := s.IsAllowed(ctx, email); err != nil || ok {
		return err
	}
	if _, _, err := s.client.Collection(AllowListCollection).Add(ctx, map[string]any{"email": email}); err != nil {
		return fmt.Errorf("allow email: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	_, err := s.client.Collection(UsersCollection).Doc(store.NormalizeEmail(u.Email)).Create(ctx, map[string]any{
		"id":           u.ID,
		"email":        store.NormalizeEmail(u.Email),
		"displayName":  u.DisplayName,
		"passwordHash": u.PasswordHash,
		"createdAt":    u.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return store.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	snap, err := s.client.Collection(UsersCollection).Doc(store.NormalizeEmail(email)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var doc struct {
		ID           string `firestore:"id"`
		Email        string `firestore:"email"`
		DisplayName  string `firestore:"displayName"`
		PasswordHash string `firestore:"passwordHash"`
		CreatedAt    int64  `firestore:"createdAt"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u := store.User(doc)
	return &u, nil
}

func notFound(id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return fmt.Errorf("expense %s: %w", id, err)
}

func toDoc(r store.Record) map[string]any {
	doc := map[string]any{
		"fecha":           r.Fecha,
		"descripcion":     r.Descripcion,
		"cantidad":        r.Cantidad,
		"partidaEspecial": r.PartidaEspecial,
	}
	if r.Persona != "" {
		doc["persona"] = r.Persona
	}
	if r.CategoriaEspecial != "" {
		doc["categoriaEspecial"] = r.CategoriaEspecial
	}
	return doc
}

// fromDoc keeps cantidad untouched; older documents hold strings.
func fromDoc(id string, data map[string]any) store.Record {
	str := func(k string) string {
		if v, ok := data[k].(string); ok {
			return v
		}
		return ""
	}
	special, _ := data["partidaEspecial"].(bool)
	return store.Record{
		ID:                id,
		Fecha:             str("fecha"),
		Descripcion:       str("descripcion"),
		Cantidad:          data["cantidad"],
		Persona:           str("persona"),
		PartidaEspecial:   special,
		CategoriaEspecial: str("categoriaEspecial"),
	}
}
