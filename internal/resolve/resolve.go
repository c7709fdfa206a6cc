// Package resolve maps a guardian's raw contact fields to a member id.
package resolve

import (
	"kidslink/internal/index"
	"kidslink/internal/normalize"
	"kidslink/pkg/contract"
)

// Lookup is the read side of the member index.
type Lookup interface {
	Email(key string) (string, bool)
	Phone(key string) (string, bool)
	Name(key string) (index.Entry, bool)
}

var _ Lookup = (*index.Index)(nil)

// Resolve applies the strategies in strict priority (email, phone, name) and
// returns the first hit. Email and phone hits keep the report's spelling of
// the guardian name; a name hit takes the registry's official display name.
func Resolve(g contract.Guardian, lk Lookup) contract.Resolution {
	if id, ok := lk.Email(normalize.Text(g.Email)); ok {
		return contract.Resolution{MemberID: id, DisplayName: g.Name, Method: contract.MethodEmail}
	}
	if id, ok := lk.Phone(normalize.Phone(g.Phone)); ok {
		return contract.Resolution{MemberID: id, DisplayName: g.Name, Method: contract.MethodPhone}
	}
	if e, ok := lk.Name(normalize.Text(g.Name)); ok {
		return contract.Resolution{MemberID: e.ID, DisplayName: e.Name, Method: contract.MethodName}
	}
	return contract.Resolution{DisplayName: g.Name, Method: contract.MethodNotFound}
}
