package graph

import (
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// user is the Graph user shape for the selected projection.
type user struct {
	ID                string  `json:"id"`
	UserPrincipalName *string `json:"userPrincipalName"`
	AccountEnabled    *bool   `json:"accountEnabled"`
	UserType          *string `json:"userType"`
	CreatedDateTime   *string `json:"createdDateTime"`
	DisplayName       *string `json:"displayName"`
	Mail              *string `json:"mail"`
	SignInActivity    *struct {
		LastSignInDateTime *string `json:"lastSignInDateTime"`
	} `json:"signInActivity"`
}

// Transform maps a Graph user onto a Record.
// lastSignInDateTime is lifted out of signInActivity.
func (s *Source) Transform(raw driven.RawItem) (domain.Record, error) {
	var u user
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.Record{}, fmt.Errorf("%w: graph user: %w", domain.ErrInvalidInput, err)
	}

	rec := domain.Record{
		ID:                u.ID,
		UserPrincipalName: u.UserPrincipalName,
		AccountEnabled:    u.AccountEnabled,
		UserType:          u.UserType,
		CreatedDateTime:   u.CreatedDateTime,
		DisplayName:       u.DisplayName,
		Mail:              u.Mail,
	}
	if u.SignInActivity != nil {
		rec.LastSignInDateTime = u.SignInActivity.LastSignInDateTime
	}

	if err := rec.Validate(); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}
