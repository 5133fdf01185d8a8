// Package auth also provides dataset-level authorization: a per-role
// dataset allowlist evaluated as pipeline guard step 0, before RLS.
//
// This is additive to RLS, which governs row visibility, not dataset
// visibility. A dataset with no declared allowlist is open to any
// authenticated role. Once a dataset declares one, every role absent
// from it is denied — absence of a grant is denial, but only after a
// dataset opts into the allowlist at all.
package auth

import (
	"sync"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// AuthorizationService evaluates role → dataset access. Permission data
// normally lives on the Dataset itself (AllowedRoles), loaded by the
// catalog at bootstrap; the override table below exists for callers
// (tests, for example) that want to grant or revoke access
// to a role without re-publishing the dataset definition.
type AuthorizationService struct {
	mu        sync.RWMutex
	overrides map[string]map[types.Role]bool // dataset → role → allowed
}

// NewAuthorizationService returns an authorization service with no
// overrides; dataset access follows each Dataset's own AllowedRoles.
func NewAuthorizationService() *AuthorizationService {
	return &AuthorizationService{overrides: make(map[string]map[types.Role]bool)}
}

// GrantAccess allows role to see datasetID regardless of its AllowedRoles.
func (s *AuthorizationService) GrantAccess(datasetID string, role types.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[datasetID] == nil {
		s.overrides[datasetID] = make(map[types.Role]bool)
	}
	s.overrides[datasetID][role] = true
}

// RevokeAccess removes a role from datasetID's AllowedRoles even if the
// dataset definition names it.
func (s *AuthorizationService) RevokeAccess(datasetID string, role types.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[datasetID] == nil {
		s.overrides[datasetID] = make(map[types.Role]bool)
	}
	s.overrides[datasetID][role] = false
}

// AuthorizeDataset checks whether role may see ds at all, consulting any
// override before falling back to ds.AllowedRoles.
func (s *AuthorizationService) AuthorizeDataset(ds *types.Dataset, role types.Role) error {
	if allowed, ok := s.override(ds.ID, role); ok {
		if allowed {
			return nil
		}
		return errors.NewForbidden(string(role), ds.ID)
	}

	if len(ds.AllowedRoles) == 0 {
		return nil
	}
	for _, r := range ds.AllowedRoles {
		if r == role {
			return nil
		}
	}
	return errors.NewForbidden(string(role), ds.ID)
}

func (s *AuthorizationService) override(datasetID string, role types.Role) (allowed bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles, found := s.overrides[datasetID]
	if !found {
		return false, false
	}
	allowed, ok = roles[role]
	return allowed, ok
}
