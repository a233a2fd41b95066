// Package keyword implements the keyword/text index: a term dictionary
// plus one bitmap per term, built either from a term-document file
// ("term: id1, id2, ..." lines) or by tokenizing a text column row by row.
package keyword

import (
	"strings"
	"sync"
)

// dictionary interns terms case-insensitively, assigning ids in order of
// first sight and preserving the first-seen spelling.
type dictionary struct {
	mu      sync.RWMutex
	byFold  map[string]int // lower-cased term -> 0-based id
	spelled []string       // id -> first-seen spelling
}

func newDictionary() *dictionary {
	return &dictionary{byFold: map[string]int{}}
}

// intern returns the id for term, assigning a new one if unseen.
func (d *dictionary) intern(term string) int {
	fold := strings.ToLower(term)
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byFold[fold]; ok {
		return id
	}
	id := len(d.spelled)
	d.byFold[fold] = id
	d.spelled = append(d.spelled, term)
	return id
}

// lookup returns the id of term and whether it is known, without interning.
func (d *dictionary) lookup(term string) (int, bool) {
	fold := strings.ToLower(term)
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byFold[fold]
	return id, ok
}

func (d *dictionary) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.spelled)
}

func (d *dictionary) terms() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.spelled))
	copy(out, d.spelled)
	return out
}
