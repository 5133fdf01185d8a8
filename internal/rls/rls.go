// Package rls implements the RLS Engine (C4): deriving a mandatory
// tenant-scoping predicate from a dataset's policy and the caller's
// identity.
package rls

import (
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// Evaluate runs the four-step RLS algorithm: resolve the policy, resolve
// the tenant value, build the predicate, then decide whether an admin
// bypass applies.
func Evaluate(ds *types.Dataset, ctx types.TenantContext) (*types.RLSResult, error) {
	if !ds.RLS.Enabled {
		return &types.RLSResult{Applied: false, Bypassed: false, Reason: "rls not enabled for dataset"}, nil
	}

	field, ok := ds.FieldByName(ds.RLS.Column)
	if !ok {
		return nil, errors.NewConfigError(
			"rls.column " + ds.RLS.Column + " does not name a declared field on dataset " + ds.ID)
	}

	if ds.RLS.AllowAdminBypass && ctx.Role == types.RoleAdmin {
		return &types.RLSResult{Applied: false, Bypassed: true, Reason: "admin bypass enabled for dataset"}, nil
	}

	// mode=in_list is treated identically to mode=equals today; list-valued
	// tenant scoping is future work.
	predicate := &types.FilterNode{
		Field: field.PhysicalColumn,
		Op:    types.OpEq,
		Value: ctx.Tenant,
	}

	return &types.RLSResult{Applied: true, Predicate: predicate, Bypassed: false, Reason: "tenant scoping applied"}, nil
}
