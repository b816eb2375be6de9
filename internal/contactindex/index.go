// Package contactindex keeps the in-memory contact store and its token search
// index. One ContactIndex is created at startup and shared by every consumer.
package contactindex

import (
	"container/list"
	"fmt"
	"strings"
	"sync"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

var (
	// ErrInvalidContact is returned for contacts that cannot be indexed.
	ErrInvalidContact = fmt.Errorf("invalid contact: %w", apperrors.ErrValidation)
	// ErrContactNotFound is returned by Update for unknown ids.
	ErrContactNotFound = fmt.Errorf("contact: %w", apperrors.ErrNotFound)
)

// entry is the list payload: the stored snapshot and its normalized tokens.
type entry struct {
	contact model.Contact
	tokens  string
}

// ElementError describes one rejected element of a batch.
type ElementError struct {
	Index int
	ID    string
	Err   error
}

func (e ElementError) Error() string {
	return fmt.Sprintf("element %d (id=%q): %v", e.Index, e.ID, e.Err)
}

// BatchResult summarises a bulk upsert.
type BatchResult struct {
	Accepted int
	Rejected int
	Errors   []ElementError
}

// ContactIndex is an ordered contact store with substring search. It is safe
// for concurrent use.
type ContactIndex struct {
	mu    sync.RWMutex
	order *list.List
	byID  map[string]*list.Element
}

// New returns an empty index.
func New() *ContactIndex {
	return &ContactIndex{
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

// Initialize discards everything stored and ingests contacts.
func (x *ContactIndex) Initialize(contacts []model.Contact) BatchResult {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.order.Init()
	x.byID = make(map[string]*list.Element, len(contacts))
	return x.bulkUpsertLocked(contacts)
}

// BulkUpsert upserts contacts in order. Rejected elements are reported in the
// result and never stop the batch.
func (x *ContactIndex) BulkUpsert(contacts []model.Contact) BatchResult {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.bulkUpsertLocked(contacts)
}

func (x *ContactIndex) bulkUpsertLocked(contacts []model.Contact) BatchResult {
	var res BatchResult
	for i, c := range contacts {
		if err := x.upsertLocked(c); err != nil {
			res.Rejected++
			res.Errors = append(res.Errors, ElementError{Index: i, ID: c.ID, Err: err})
			continue
		}
		res.Accepted++
	}
	return res
}

// Upsert stores a full snapshot of c, replacing any previous one with the
// same ID, and moves it to the end of enumeration order.
func (x *ContactIndex) Upsert(c model.Contact) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.upsertLocked(c)
}

func (x *ContactIndex) upsertLocked(c model.Contact) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidContact)
	}

	e := &entry{contact: c.Clone(), tokens: Tokens(c)}
	if el, ok := x.byID[c.ID]; ok {
		el.Value = e
		x.order.MoveToBack(el)
		return nil
	}
	x.byID[c.ID] = x.order.PushBack(e)
	return nil
}

// Update runs fn on a copy of the stored snapshot for id while holding the
// write lock, so no other write can land between the read and the store. When
// fn returns true the copy replaces the snapshot like Upsert does; otherwise
// nothing changes. Update returns the snapshot stored afterwards.
func (x *ContactIndex) Update(id string, fn func(c *model.Contact) bool) (model.Contact, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	el, ok := x.byID[id]
	if !ok {
		return model.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, id)
	}
	current := el.Value.(*entry).contact.Clone()
	if !fn(&current) {
		return current, nil
	}
	if current.ID != id {
		return model.Contact{}, fmt.Errorf("%w: update changed id %q to %q", ErrInvalidContact, id, current.ID)
	}
	if err := x.upsertLocked(current); err != nil {
		return model.Contact{}, err
	}
	return current.Clone(), nil
}

// Get returns the stored snapshot for id.
func (x *ContactIndex) Get(id string) (model.Contact, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	el, ok := x.byID[id]
	if !ok {
		return model.Contact{}, false
	}
	return el.Value.(*entry).contact.Clone(), true
}

// All returns every contact in enumeration order. The result is never nil.
func (x *ContactIndex) All() []model.Contact {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]model.Contact, 0, x.order.Len())
	for el := x.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).contact.Clone())
	}
	return out
}

// Search returns the contacts whose tokens contain every term of query, in
// enumeration order. An empty query, or one with no usable terms, matches
// everything.
func (x *ContactIndex) Search(query string) []model.Contact {
	terms := Terms(query)
	if len(terms) == 0 {
		return x.All()
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]model.Contact, 0)
	for el := x.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if matchesAll(e.tokens, terms) {
			out = append(out, e.contact.Clone())
		}
	}
	return out
}

func matchesAll(tokens string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(tokens, t) {
			return false
		}
	}
	return true
}

// Remove drops the contact with id. It reports whether anything was stored.
func (x *ContactIndex) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	el, ok := x.byID[id]
	if !ok {
		return false
	}
	x.order.Remove(el)
	delete(x.byID, id)
	return true
}

// Len returns the number of stored contacts.
func (x *ContactIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}
