// Package worker keeps a Google Sheets tab in step with the expense
// collection.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/export"
	"gastos/internal/metrics"
)

// ExpenseLister returns the validated expense collection.
type ExpenseLister interface {
	ListAll(ctx context.Context) ([]core.Expense, error)
}

// RowWriter replaces the mirrored rows.
type RowWriter interface {
	ReplaceRows(ctx context.Context, header []string, rows [][]any) error
}

// MirrorConfig holds the mirror's timing.
type MirrorConfig struct {
	// Interval between unconditional rebuilds (default: 10m)
	Interval time.Duration

	// Debounce collapses bursts of change messages into one rebuild (default: 2s)
	Debounce time.Duration
}

func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Interval: 10 * time.Minute,
		Debounce: 2 * time.Second,
	}
}

// SheetsMirror rewrites the whole sheet from the expense collection when a
// change message arrives and on a fixed interval.
type SheetsMirror struct {
	expenses ExpenseLister
	sheet    RowWriter
	config   MirrorConfig

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastRun time.Time
	lastErr error
}

func NewSheetsMirror(expenses ExpenseLister, sheet RowWriter, config MirrorConfig) *SheetsMirror {
	def := DefaultMirrorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Debounce < 0 {
		config.Debounce = 0
	}
	return &SheetsMirror{
		expenses: expenses,
		sheet:    sheet,
		config:   config,
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the rebuild loop. Returns an error if already running.
func (m *SheetsMirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sheets mirror is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	go m.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sheets mirror started",
		"interval", m.config.Interval,
		"debounce", m.config.Debounce)
	return nil
}

// Stop signals the loop and waits for the current rebuild to finish.
func (m *SheetsMirror) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	stopCh, doneCh := m.stopCh, m.doneCh
	m.running = false
	m.stopCh = nil
	m.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sheets mirror stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sheets mirror stop timed out")
		return ctx.Err()
	}
	return nil
}

func (m *SheetsMirror) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastRun reports when the last rebuild finished and its error.
func (m *SheetsMirror) LastRun() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun, m.lastErr
}

// Notify schedules a rebuild. Never blocks; pending requests coalesce.
func (m *SheetsMirror) Notify() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// HandleExpenseChanged is the AMQP consumer callback.
func (m *SheetsMirror) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	slog.DebugContext(ctx, "Expense change received",
		"action", msg.Action,
		"ids", msg.IDs,
		"timestamp", msg.Timestamp)
	m.Notify()
	return nil
}

func (m *SheetsMirror) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// Rebuild immediately on startup
	m.rebuild(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.rebuild(ctx)
		case <-m.trigger:
			if m.config.Debounce > 0 {
				select {
				case <-time.After(m.config.Debounce):
				case <-stopCh:
					return
				case <-ctx.Done():
					return
				}
				// drain requests that arrived while waiting
				select {
				case <-m.trigger:
				default:
				}
			}
			m.rebuild(ctx)
		}
	}
}

// Rebuild runs one synchronous rebuild.
func (m *SheetsMirror) Rebuild(ctx context.Context) error {
	return m.rebuild(ctx)
}

func (m *SheetsMirror) rebuild(ctx context.Context) error {
	start := time.Now()
	err := m.write(ctx)

	m.mu.Lock()
	m.lastRun = time.Now()
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		metrics.SheetMirrors.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "Sheets mirror rebuild failed", "error", err)
		return err
	}
	metrics.SheetMirrors.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Sheets mirror rebuilt", "duration", time.Since(start))
	return nil
}

func (m *SheetsMirror) write(ctx context.Context) error {
	expenses, err := m.expenses.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	if err := m.sheet.ReplaceRows(ctx, export.Header, export.Rows(expenses)); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}
	return nil
}

// LocalPublisher feeds change notifications straight into a mirror running
// in the same process. Used when no broker is configured.
type LocalPublisher struct {
	Mirror *SheetsMirror
}

func (p LocalPublisher) PublishExpenseChanged(_ context.Context, _ string, _ ...string) error {
	p.Mirror.Notify()
	return nil
}

func (LocalPublisher) Close() error { return nil }
