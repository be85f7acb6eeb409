// Package members manages the household member list. The list lives in
// device-local preferences, so two installations can hold different lists;
// nothing here reconciles them.
package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"gastos/internal/prefs"
)

// DefaultMembers seeds a device that has never stored a list.
var DefaultMembers = []string{"Paolo", "Stfy", "Pan", "León"}

var (
	ErrBlankName     = errors.New("member name is blank")
	ErrDuplicate     = errors.New("member already exists")
	ErrUnchanged     = errors.New("new name equals the current name")
	ErrUnknownMember = errors.New("unknown member")
	ErrNotConfirmed  = errors.New("removal not confirmed")
)

// KV is the keyed persistence used for the list.
type KV interface {
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
}

// Confirmer asks the user to approve a destructive change.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// Observer is told about removals and renames so in-progress selections
// can follow them.
type Observer interface {
	MemberRemoved(name string)
	MemberRenamed(oldName, newName string)
}

type Registry struct {
	mu        sync.Mutex
	kv        KV
	names     []string
	observers []Observer
}

// NewRegistry loads the stored list, seeding DefaultMembers when none exists.
func NewRegistry(kv KV) (*Registry, error) {
	r := &Registry{kv: kv}
	var stored []string
	ok, err := kv.Get(prefs.KeyMembers, &stored)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	if !ok {
		r.names = append([]string(nil), DefaultMembers...)
		return r, nil
	}
	r.names = stored
	return r, nil
}

// Subscribe registers o for removal and rename notifications.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// List returns a copy of the members in order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// Contains reports an exact, case-sensitive match.
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(name) >= 0
}

func (r *Registry) indexLocked(name string) int {
	for i, n := range r.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Add appends a trimmed name.
func (r *Registry) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	next := append(append([]string(nil), r.names...), name)
	return r.saveLocked(next)
}

// Remove deletes name after c confirms. Observers drop it from any
// in-progress selection.
func (r *Registry) Remove(ctx context.Context, name string, c Confirmer) error {
	r.mu.Lock()
	if r.indexLocked(name) < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	r.mu.Unlock()

	if c == nil || !c.Confirm(ctx, fmt.Sprintf("¿Eliminar a %s de la familia?", name)) {
		return ErrNotConfirmed
	}

	r.mu.Lock()
	i := r.indexLocked(name)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	next := append(append([]string(nil), r.names[:i]...), r.names[i+1:]...)
	if err := r.saveLocked(next); err != nil {
		r.mu.Unlock()
		return err
	}
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	for _, o := range observers {
		o.MemberRemoved(name)
	}
	slog.InfoContext(ctx, "Member removed", "name", name)
	return nil
}

// Rename replaces oldName with a trimmed newName. Stored expenses keep the
// name they were recorded with.
func (r *Registry) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrBlankName
	}
	if newName == oldName {
		return ErrUnchanged
	}

	r.mu.Lock()
	i := r.indexLocked(oldName)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMember, oldName)
	}
	if r.indexLocked(newName) >= 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, newName)
	}
	next := append([]string(nil), r.names...)
	next[i] = newName
	if err := r.saveLocked(next); err != nil {
		r.mu.Unlock()
		return err
	}
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	for _, o := range observers {
		o.MemberRenamed(oldName, newName)
	}
	return nil
}

// Suggest returns the member closest to name by edit distance, if any is
// close enough to be a likely typo.
func (r *Registry) Suggest(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	best, bestDist := "", -1
	for _, n := range r.names {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(n))
		if bestDist < 0 || d < bestDist {
			best, bestDist = n, d
		}
	}
	limit := len([]rune(name)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

func (r *Registry) saveLocked(next []string) error {
	if err := r.kv.Set(prefs.KeyMembers, next); err != nil {
		return fmt.Errorf("save members: %w", err)
	}
	r.names = next
	return nil
}
