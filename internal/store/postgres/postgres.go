// Package postgres stores expenses, the allow-list and accounts in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gastos/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS gastos (
	id TEXT PRIMARY KEY,
	fecha TEXT NOT NULL,
	descripcion TEXT NOT NULL,
	cantidad TEXT,
	persona TEXT,
	partida_especial BOOLEAN NOT NULL DEFAULT FALSE,
	categoria_especial TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_gastos_fecha ON gastos(fecha);
CREATE TABLE IF NOT EXISTS usuarios_permitidos (
	email TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS usuarios (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
`

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

type Repo struct {
	conn *pgxpool.Pool
}

var (
	_ store.ExpenseStore = (*Repo)(nil)
	_ store.AllowList    = (*Repo)(nil)
	_ store.UserStore    = (*Repo)(nil)
)

// Connect opens a pool on dsn, pings it and ensures the schema exists.
func Connect(ctx context.Context, dsn string) (*Repo, error) {
	conn, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	if _, err := conn.Exec(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return &Repo{conn: conn}, nil
}

func (r *Repo) Close() error {
	r.conn.Close()
	return nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *Repo) ListRecords(ctx context.Context) ([]store.Record, error) {
	sql := `
		SELECT id, fecha, descripcion, cantidad, persona, partida_especial, categoria_especial
		FROM gastos
		`
	rows, err := r.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("error listing expenses: %w", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			rec                         store.Record
			cantidad, persona, category *string
		)
		if err := rows.Scan(&rec.ID, &rec.Fecha, &rec.Descripcion, &cantidad, &persona, &rec.PartidaEspecial, &category); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		if cantidad != nil {
			rec.Cantidad = *cantidad
		}
		if persona != nil {
			rec.Persona = *persona
		}
		if category != nil {
			rec.CategoriaEspecial = *category
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) AddRecord(ctx context.Context, rec store.Record) (string, error) {
	sql := `
		INSERT INTO gastos (id, fecha, descripcion, cantidad, persona, partida_especial, categoria_especial)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
	id := store.NewID()
	_, err := r.conn.Exec(ctx, sql, id, rec.Fecha, rec.Descripcion, amountText(rec.Cantidad), nullable(rec.Persona), rec.PartidaEspecial, nullable(rec.CategoriaEspecial))
	if err != nil {
		return "", fmt.Errorf("error adding expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved to Postgres", "id", id, "fecha", rec.Fecha)
	return id, nil
}

func (r *Repo) UpdateRecord(ctx context.Context, id string, rec store.Record) error {
	sql := `
		UPDATE gastos
		SET fecha = $2, descripcion = $3, cantidad = $4, persona = $5, partida_especial = $6,
		    categoria_especial = $7, updated_at = now()
		WHERE id = $1
		`
	tag, err := r.conn.Exec(ctx, sql, id, rec.Fecha, rec.Descripcion, amountText(rec.Cantidad), nullable(rec.Persona), rec.PartidaEspecial, nullable(rec.CategoriaEspecial))
	if err != nil {
		return fmt.Errorf("error updating expense %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *Repo) DeleteRecord(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM gastos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting expense %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *Repo) IsAllowed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM usuarios_permitidos WHERE lower(trim(email)) = $1)`, store.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking allow-list: %w", err)
	}
	return exists, nil
}

func (r *Repo) Allow(ctx context.Context, email string) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO usuarios_permitidos (email) VALUES ($1) ON CONFLICT DO NOTHING`, store.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("error allowing email: %w", err)
	}
	return nil
}

func (r *Repo) CreateUser(ctx context.Context, u *store.User) error {
	sql := `
		INSERT INTO usuarios (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		`
	_, err := r.conn.Exec(ctx, sql, u.ID, store.NormalizeEmail(u.Email), u.DisplayName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrUserExists
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	sql := `
		SELECT id, email, display_name, password_hash, created_at
		FROM usuarios
		WHERE email = $1
		`
	u := &store.User{}
	err := r.conn.QueryRow(ctx, sql, store.NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return u, nil
}

func amountText(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		s = x
	default:
		s = fmt.Sprint(v)
	}
	return &s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
