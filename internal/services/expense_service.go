package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gastos/internal/aggregate"
	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/metrics"
	"gastos/internal/period"
	"gastos/internal/store"
)

// Publisher announces changes to the expense collection. The AMQP client
// implements it; a nil Publisher disables notifications.
type Publisher interface {
	PublishExpenseChanged(ctx context.Context, action string, ids ...string) error
	Close() error
}

// ExpenseService owns persistence of expense records: it shapes stored
// records into core.Expense values and writes new ones, re-reading the
// whole collection after every change.
type ExpenseService struct {
	storage   store.ExpenseStore
	publisher Publisher
	strict    bool
	closers   []func() error
}

// Option configures an ExpenseService.
type Option func(*ExpenseService)

// WithPublisher sends a change message after every successful write.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithIngestMode selects lenient (default) or strict amount coercion.
func WithIngestMode(m core.IngestMode) Option {
	return func(s *ExpenseService) { s.strict = m == core.IngestStrict }
}

// WithCloser registers a cleanup run by Close, e.g. the storage handle.
func WithCloser(fn func() error) Option {
	return func(s *ExpenseService) { s.closers = append(s.closers, fn) }
}

func NewExpenseService(storage store.ExpenseStore, opts ...Option) *ExpenseService {
	s := &ExpenseService{storage: storage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll returns every valid expense sorted by fecha descending. Records
// whose fecha does not parse, or whose cantidad does not parse in strict
// mode, are skipped and logged.
func (s *ExpenseService) ListAll(ctx context.Context) ([]core.Expense, error) {
	records, err := s.storage.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]core.Expense, 0, len(records))
	for _, r := range records {
		e, err := s.shape(r)
		if err != nil {
			metrics.RecordsQuarantined.Inc()
			slog.WarnContext(ctx, "Skipping stored expense", "id", r.ID, "fecha", r.Fecha, "cantidad", r.Cantidad, "error", err)
			continue
		}
		out = append(out, e)
	}

	// ISO dates compare chronologically as strings.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fecha.String() > out[j].Fecha.String()
	})
	return out, nil
}

func (s *ExpenseService) shape(r store.Record) (core.Expense, error) {
	fecha, err := core.ParseDate(r.Fecha)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.CoerceAmount(r.Cantidad, s.strict)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:                r.ID,
		Fecha:             fecha,
		Descripcion:       r.Descripcion,
		Cantidad:          amount,
		Persona:           r.Persona,
		PartidaEspecial:   r.PartidaEspecial,
		CategoriaEspecial: r.CategoriaEspecial,
	}, nil
}

// ListMonth returns the expenses dated in m.
func (s *ExpenseService) ListMonth(ctx context.Context, m period.Month) ([]core.Expense, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.FilterByMonth(all, m), nil
}

// Create stores a single expense and returns the refreshed list.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) ([]core.Expense, error) {
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	id, err := s.storage.AddRecord(ctx, store.RecordFromExpense(e))
	if err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}
	metrics.ExpensesWritten.WithLabelValues("create").Inc()
	s.publish(ctx, amqp.ActionCreated, id)
	return s.ListAll(ctx)
}

// SplitError reports a split that stopped part way; Written records stay.
type SplitError struct {
	Written int
	Total   int
	Err     error
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("split expense: saved %d of %d records: %v", e.Written, e.Total, e.Err)
}

func (e *SplitError) Unwrap() error { return e.Err }

// CreateSplit divides e.Cantidad evenly across members and stores one
// record per member. With more than one member the description notes the
// split count.
func (s *ExpenseService) CreateSplit(ctx context.Context, e core.Expense, members []string) ([]core.Expense, error) {
	members = cleanMembers(members)
	if len(members) == 0 {
		return nil, core.ErrNoMembers
	}
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	n := len(members)
	part := e
	part.Cantidad = core.SplitAmount(e.Cantidad, n)
	if n > 1 {
		part.Descripcion = fmt.Sprintf("%s (dividido entre %d)", e.Descripcion, n)
	}

	ids := make([]string, 0, n)
	for _, m := range members {
		part.Persona = m
		id, err := s.storage.AddRecord(ctx, store.RecordFromExpense(part))
		if err != nil {
			if len(ids) > 0 {
				s.publish(ctx, amqp.ActionCreated, ids...)
			}
			return nil, &SplitError{Written: len(ids), Total: n, Err: err}
		}
		ids = append(ids, id)
	}
	metrics.ExpensesWritten.WithLabelValues("create").Add(float64(n))

	slog.InfoContext(ctx, "Expense split across members", "members", n, "cantidad", e.Cantidad, "parte", part.Cantidad)
	s.publish(ctx, amqp.ActionCreated, ids...)
	return s.ListAll(ctx)
}

// Update rewrites the record id in place. The persona becomes the first
// selected member, or none when the selection is empty.
func (s *ExpenseService) Update(ctx context.Context, id string, e core.Expense, members []string) ([]core.Expense, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("update expense: %w", store.ErrNotFound)
	}
	members = cleanMembers(members)
	e.Persona = ""
	if len(members) > 0 {
		e.Persona = members[0]
	}
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateRecord(ctx, id, store.RecordFromExpense(e)); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	metrics.ExpensesWritten.WithLabelValues("update").Inc()
	s.publish(ctx, amqp.ActionUpdated, id)
	return s.ListAll(ctx)
}

// Delete removes the record id and returns the refreshed list.
func (s *ExpenseService) Delete(ctx context.Context, id string) ([]core.Expense, error) {
	if err := s.storage.DeleteRecord(ctx, id); err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	metrics.ExpensesWritten.WithLabelValues("delete").Inc()
	s.publish(ctx, amqp.ActionDeleted, id)
	return s.ListAll(ctx)
}

// Get returns one expense by id from a fresh list.
func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %s: %w", id, store.ErrNotFound)
}

func (s *ExpenseService) publish(ctx context.Context, action string, ids ...string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseChanged(ctx, action, ids...); err != nil {
		// The write already succeeded; the mirror catches up on its next run.
		slog.ErrorContext(ctx, "Failed to publish expense change", "action", action, "error", err)
	}
}

// Close closes the publisher and any registered closers.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}

func cleanMembers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
