package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gastos/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ store.ExpenseStore = (*SQLiteRepository)(nil)
	_ store.AllowList    = (*SQLiteRepository)(nil)
	_ store.UserStore    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListRecords implements store.ExpenseStore
func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]store.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fecha, descripcion, cantidad, persona, partida_especial, categoria_especial
		FROM gastos`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			rec                         store.Record
			cantidad, persona, category sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Fecha, &rec.Descripcion, &cantidad, &persona, &rec.PartidaEspecial, &category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if cantidad.Valid {
			rec.Cantidad = cantidad.String
		}
		rec.Persona = persona.String
		rec.CategoriaEspecial = category.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// AddRecord implements store.ExpenseStore
func (r *SQLiteRepository) AddRecord(ctx context.Context, rec store.Record) (string, error) {
	id := store.NewID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gastos (id, fecha, descripcion, cantidad, persona, partida_especial, categoria_especial)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Fecha, rec.Descripcion, amountText(rec.Cantidad), nullable(rec.Persona), rec.PartidaEspecial, nullable(rec.CategoriaEspecial))
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"descripcion", rec.Descripcion,
		"cantidad", rec.Cantidad,
		"fecha", rec.Fecha)

	return id, nil
}

// UpdateRecord implements store.ExpenseStore
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, id string, rec store.Record) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gastos
		SET fecha = ?, descripcion = ?, cantidad = ?, persona = ?, partida_especial = ?, categoria_especial = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rec.Fecha, rec.Descripcion, amountText(rec.Cantidad), nullable(rec.Persona), rec.PartidaEspecial, nullable(rec.CategoriaEspecial), id)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense updated in SQLite", "id", id)
	return nil
}

// DeleteRecord implements store.ExpenseStore
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gastos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

// IsAllowed implements store.AllowList
func (r *SQLiteRepository) IsAllowed(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios_permitidos WHERE lower(trim(email)) = ?`, store.NormalizeEmail(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check allow-list: %w", err)
	}
	return n > 0, nil
}

// Allow implements store.AllowList
func (r *SQLiteRepository) Allow(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO usuarios_permitidos (email) VALUES (?)`, store.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("allow email: %w", err)
	}
	return nil
}

// CreateUser implements store.UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *store.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usuarios (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, store.NormalizeEmail(u.Email), u.DisplayName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail implements store.UserStore
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	u := &store.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM usuarios
		WHERE email = ?`, store.NormalizeEmail(email)).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// amountText renders a stored amount for the TEXT cantidad column.
func amountText(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
