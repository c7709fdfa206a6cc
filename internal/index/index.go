// Package index builds the exact-match lookup tables over the member registry.
package index

import (
	"kidslink/internal/normalize"
	"kidslink/pkg/contract"
)

// MinPhoneDigits is the shortest normalized phone accepted into the index.
// Shorter digit strings are partial or garbage numbers.
const MinPhoneDigits = 8

// Strategy names one of the three lookup tables.
type Strategy string

const (
	StrategyEmail Strategy = "email"
	StrategyPhone Strategy = "phone"
	StrategyName  Strategy = "name"
)

// Entry is a name-table value: the member id and the registry's display name.
type Entry struct {
	ID   string
	Name string
}

// Collision records a normalized key that two different members share.
// The later member overwrote the earlier one.
type Collision struct {
	Strategy Strategy
	Key      string
	Previous string
	Current  string
	Line     int
}

// Stats reports the size of each table.
type Stats struct {
	Members int
	Email   int
	Phone   int
	Name    int
}

// Index is read-only after Build and safe for concurrent lookups.
type Index struct {
	byEmail    map[string]string
	byPhone    map[string]string
	byName     map[string]Entry
	members    int
	collisions []Collision
}

// Build indexes members in one pass. Empty keys are never inserted and a
// duplicate key keeps the last member seen.
func Build(members []contract.MemberRecord) *Index {
	ix := &Index{
		byEmail: make(map[string]string, len(members)),
		byPhone: make(map[string]string, len(members)),
		byName:  make(map[string]Entry, len(members)),
		members: len(members),
	}
	for _, m := range members {
		if m.Email != "" {
			if k := normalize.Text(m.Email); k != "" {
				ix.noteCollision(StrategyEmail, k, ix.byEmail[k], m)
				ix.byEmail[k] = m.ID
			}
		}
		if m.Phone != "" {
			if k := normalize.Phone(m.Phone); len(k) >= MinPhoneDigits {
				ix.noteCollision(StrategyPhone, k, ix.byPhone[k], m)
				ix.byPhone[k] = m.ID
			}
		}
		if m.Name != "" {
			if k := normalize.Text(m.Name); k != "" {
				ix.noteCollision(StrategyName, k, ix.byName[k].ID, m)
				ix.byName[k] = Entry{ID: m.ID, Name: m.Name}
			}
		}
	}
	return ix
}

func (ix *Index) noteCollision(s Strategy, key, prev string, m contract.MemberRecord) {
	if prev == "" || prev == m.ID {
		return
	}
	ix.collisions = append(ix.collisions, Collision{Strategy: s, Key: key, Previous: prev, Current: m.ID, Line: m.Line})
}

// Email looks up a normalized email key.
func (ix *Index) Email(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	id, ok := ix.byEmail[key]
	return id, ok
}

// Phone looks up a normalized phone key.
func (ix *Index) Phone(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	id, ok := ix.byPhone[key]
	return id, ok
}

// Name looks up a normalized name key.
func (ix *Index) Name(key string) (Entry, bool) {
	if key == "" {
		return Entry{}, false
	}
	e, ok := ix.byName[key]
	return e, ok
}

// Stats returns the table sizes.
func (ix *Index) Stats() Stats {
	return Stats{Members: ix.members, Email: len(ix.byEmail), Phone: len(ix.byPhone), Name: len(ix.byName)}
}

// Collisions returns the overwritten keys in build order.
func (ix *Index) Collisions() []Collision {
	out := make([]Collision, len(ix.collisions))
	copy(out, ix.collisions)
	return out
}
