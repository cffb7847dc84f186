package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tracked attribute names. Order is the comparison order.
const (
	FieldUserPrincipalName  = "userPrincipalName"
	FieldAccountEnabled     = "accountEnabled"
	FieldUserType           = "userType"
	FieldCreatedDateTime    = "createdDateTime"
	FieldLastSignInDateTime = "lastSignInDateTime"
)

// TrackedFields lists the attributes compared for change detection.
var TrackedFields = []string{
	FieldUserPrincipalName,
	FieldAccountEnabled,
	FieldUserType,
	FieldCreatedDateTime,
	FieldLastSignInDateTime,
}

// Record is a single directory user.
//
// Every attribute except ID is optional. A nil pointer means the source did not
// supply the attribute, which is distinct from an empty string.
type Record struct {
	// ID is the stable, immutable source identifier.
	ID string `json:"id"`

	// Tracked attributes.
	UserPrincipalName  *string `json:"userPrincipalName,omitempty"`
	AccountEnabled     *bool   `json:"accountEnabled,omitempty"`
	UserType           *string `json:"userType,omitempty"`
	CreatedDateTime    *string `json:"createdDateTime,omitempty"`
	LastSignInDateTime *string `json:"lastSignInDateTime,omitempty"`

	// Pass-through attributes, copied but never compared.
	DisplayName *string `json:"displayName,omitempty"`
	Mail        *string `json:"mail,omitempty"`
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	return nil
}

// TrackedValue returns the value of a tracked attribute.
// Absent attributes return nil; present ones return string or bool.
func (r *Record) TrackedValue(field string) any {
	switch field {
	case FieldUserPrincipalName:
		return deref(r.UserPrincipalName)
	case FieldAccountEnabled:
		if r.AccountEnabled == nil {
			return nil
		}
		return *r.AccountEnabled
	case FieldUserType:
		return deref(r.UserType)
	case FieldCreatedDateTime:
		return deref(r.CreatedDateTime)
	case FieldLastSignInDateTime:
		return deref(r.LastSignInDateTime)
	default:
		return nil
	}
}

// Tracked returns a copy holding only the id and tracked attributes.
func (r *Record) Tracked() Record {
	return Record{
		ID:                 r.ID,
		UserPrincipalName:  r.UserPrincipalName,
		AccountEnabled:     r.AccountEnabled,
		UserType:           r.UserType,
		CreatedDateTime:    r.CreatedDateTime,
		LastSignInDateTime: r.LastSignInDateTime,
	}
}

// MarshalLine encodes the record as one newline-terminated landing line.
func (r *Record) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	return append(data, '\n'), nil
}

// ParseRecord decodes one landing line. Unknown fields and a missing id are rejected.
func ParseRecord(line []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
