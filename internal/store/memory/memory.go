package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gastos/internal/store"
)

// Store keeps expenses, allowed emails and accounts in process memory.
type Store struct {
	mu      sync.Mutex
	records map[string]store.Record
	order   []string
	allowed map[string]struct{}
	users   map[string]store.User
}

var (
	_ store.ExpenseStore = (*Store)(nil)
	_ store.AllowList    = (*Store)(nil)
	_ store.UserStore    = (*Store)(nil)
)

func New(allowed []string) *Store {
	s := &Store{
		records: map[string]store.Record{},
		allowed: map[string]struct{}{},
		users:   map[string]store.User{},
	}
	for _, email := range dedupe(allowed) {
		s.allowed[store.NormalizeEmail(email)] = struct{}{}
	}
	return s
}

// NewFromFiles seeds the store from seed_allowlist.txt (one email per line)
// and seed_expenses.json (a JSON array of records) under base. Missing
// files leave the store empty.
func NewFromFiles(base string) (*Store, error) {
	s := New(readLines(filepath.Join(base, "seed_allowlist.txt")))

	b, err := os.ReadFile(filepath.Join(base, "seed_expenses.json"))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed expenses: %w", err)
	}
	var seed []struct {
		ID                string `json:"id"`
		Fecha             string `json:"fecha"`
		Descripcion       string `json:"descripcion"`
		Cantidad          any    `json:"cantidad"`
		Persona           string `json:"persona"`
		PartidaEspecial   bool   `json:"partidaEspecial"`
		CategoriaEspecial string `json:"categoriaEspecial"`
	}
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed expenses: %w", err)
	}
	for _, r := range seed {
		rec := store.Record(r)
		if rec.ID == "" {
			rec.ID = store.NewID()
		}
		s.put(rec)
	}
	return s, nil
}

func (s *Store) put(r store.Record) {
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
}

// ListRecords returns records in insertion order.
func (s *Store) ListRecords(_ context.Context) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *Store) AddRecord(_ context.Context, r store.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = store.NewID()
	s.put(r)
	return r.ID, nil
}

func (s *Store) UpdateRecord(_ context.Context, id string, r store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	r.ID = id
	s.records[id] = r
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) IsAllowed(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.allowed[store.NormalizeEmail(email)]
	return ok, nil
}

func (s *Store) Allow(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[store.NormalizeEmail(email)] = struct{}{}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := store.NormalizeEmail(u.Email)
	if _, ok := s.users[key]; ok {
		return store.ErrUserExists
	}
	s.users[key] = *u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
