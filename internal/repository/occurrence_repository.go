package repository

import (
	"sync"

	"github.com/spec-kit/occurrence-client/internal/domain"
)

// OccurrenceFilter narrows List results. Zero value matches everything.
type OccurrenceFilter struct {
	UserID   *string
	Statuses []domain.OccurrenceStatus
}

func (f OccurrenceFilter) matches(o *domain.Occurrence) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

// OccurrenceRepository is the client's local, non-authoritative copy of the
// occurrences last fetched. It is never reconciled with the backend on its
// own; callers refresh it explicitly.
type OccurrenceRepository interface {
	ReplaceAll(items []domain.Occurrence)
	Upsert(o domain.Occurrence)
	Get(id string) (domain.Occurrence, bool)
	Remove(id string) bool
	List(filter OccurrenceFilter) []domain.Occurrence
	Len() int
}

type occurrenceRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Occurrence
	order []string
}

// NewOccurrenceRepository instantiates an empty repository.
func NewOccurrenceRepository() OccurrenceRepository {
	return &occurrenceRepository{byID: make(map[string]*domain.Occurrence)}
}

func (r *occurrenceRepository) ReplaceAll(items []domain.Occurrence) {
	byID := make(map[string]*domain.Occurrence, len(items))
	order := make([]string, 0, len(items))
	for i := range items {
		o := clone(items[i])
		if _, dup := byID[o.ID]; !dup {
			order = append(order, o.ID)
		}
		byID[o.ID] = &o
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID, r.order = byID, order
}

// Upsert replaces the record in place, or appends it when new.
func (r *occurrenceRepository) Upsert(o domain.Occurrence) {
	c := clone(o)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.byID[c.ID] = &c
}

func (r *occurrenceRepository) Get(id string) (domain.Occurrence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return domain.Occurrence{}, false
	}
	return clone(*o), true
}

func (r *occurrenceRepository) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *occurrenceRepository) List(filter OccurrenceFilter) []domain.Occurrence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Occurrence, 0, len(r.order))
	for _, id := range r.order {
		o := r.byID[id]
		if filter.matches(o) {
			out = append(out, clone(*o))
		}
	}
	return out
}

func (r *occurrenceRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// clone copies pointer and slice fields so callers never share state with the cache.
func clone(o domain.Occurrence) domain.Occurrence {
	if o.Feedback != nil {
		v := *o.Feedback
		o.Feedback = &v
	}
	if o.EmployeeID != nil {
		v := *o.EmployeeID
		o.EmployeeID = &v
	}
	if o.Location != nil {
		v := *o.Location
		o.Location = &v
	}
	images := make([]domain.Image, len(o.Images))
	copy(images, o.Images)
	o.Images = images
	return o
}
