// Package store declares the outbound ports implemented by the storage
// adapters: the expense collection, the allow-list of permitted emails and
// the password accounts.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gastos/internal/core"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
)

// Record is an expense document as stored. Cantidad keeps whatever the
// store holds (number or numeric string); the service coerces it.
type Record struct {
	ID                string
	Fecha             string
	Descripcion       string
	Cantidad          any
	Persona           string
	PartidaEspecial   bool
	CategoriaEspecial string
}

// User is a password account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    int64
}

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		// ListRecords returns every stored record, in no particular order.
		ListRecords(ctx context.Context) ([]Record, error)
		AddRecord(ctx context.Context, r Record) (id string, err error)
		UpdateRecord(ctx context.Context, id string, r Record) error
		DeleteRecord(ctx context.Context, id string) error
	}

	// AllowList holds the emails permitted to use the application.
	AllowList interface {
		IsAllowed(ctx context.Context, email string) (bool, error)
		Allow(ctx context.Context, email string) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u *User) error
		// GetUserByEmail returns ErrNotFound when no account matches.
		GetUserByEmail(ctx context.Context, email string) (*User, error)
	}
)

// RecordFromExpense converts a validated expense into its stored form.
func RecordFromExpense(e core.Expense) Record {
	return Record{
		ID:                e.ID,
		Fecha:             e.Fecha.String(),
		Descripcion:       e.Descripcion,
		Cantidad:          e.Cantidad,
		Persona:           e.Persona,
		PartidaEspecial:   e.PartidaEspecial,
		CategoriaEspecial: e.CategoriaEspecial,
	}
}

// NormalizeEmail lower-cases and trims an email for allow-list lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewID returns a fresh opaque record identifier.
func NewID() string {
	return uuid.NewString()
}

// NewUser builds an account with a fresh id.
func NewUser(email, displayName, passwordHash string) *User {
	return &User{
		ID:           NewID(),
		Email:        NormalizeEmail(email),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
}
