// Package cache implements C5: fingerprinting, the cache store contract,
// and single-flight coalescing of concurrent identical requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/canonica-labs/semgate/internal/types"
)

// Fingerprint computes the deterministic cache key for a query: a SHA-256
// over a fixed-order canonical JSON document. dimensions are
// order-insensitive when the query groups (has metrics, hence GROUP BY);
// orderBy is always order-sensitive.
func Fingerprint(q *types.SemanticQuery, ctx types.TenantContext, ds *types.Dataset) string {
	dims := append([]string(nil), q.Dimensions...)
	if len(q.Metrics) > 0 {
		sort.Strings(dims)
	}
	metrics := append([]string(nil), q.Metrics...)
	sort.Strings(metrics)

	input := struct {
		Tenant            string      `json:"tenant"`
		Role              string      `json:"role"`
		Dataset           string      `json:"dataset"`
		SourceID          string      `json:"sourceId"`
		Engine            string      `json:"engine"`
		Dimensions        []string    `json:"dimensions"`
		Metrics           []string    `json:"metrics"`
		Filters           interface{} `json:"filters"`
		OrderBy           []types.OrderBy `json:"orderBy"`
		Limit             int         `json:"limit"`
		Offset            int         `json:"offset"`
		IncrementalWindow *types.IncrementalWindow `json:"incrementalWindow,omitempty"`
	}{
		Tenant:            ctx.Tenant,
		Role:              string(ctx.Role),
		Dataset:           q.Dataset,
		SourceID:          ds.SourceID,
		Engine:            ds.Engine,
		Dimensions:        dims,
		Metrics:           metrics,
		Filters:           canonicalFilter(q.Filters),
		OrderBy:           q.OrderBy,
		Limit:             q.Limit,
		Offset:            q.Offset,
		IncrementalWindow: q.IncrementalWindow,
	}

	b, _ := json.Marshal(input)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalFilter renders the filter tree into a deterministic structure:
// children of and/or are sorted by their own canonical JSON encoding so
// logically-equivalent trees (same children, different order) hash equal.
func canonicalFilter(n *types.FilterNode) interface{} {
	if n == nil {
		return nil
	}
	if len(n.And) > 0 {
		return map[string]interface{}{"and": sortedChildren(n.And)}
	}
	if len(n.Or) > 0 {
		return map[string]interface{}{"or": sortedChildren(n.Or)}
	}
	if n.Not != nil {
		return map[string]interface{}{"not": canonicalFilter(n.Not)}
	}
	return map[string]interface{}{
		"field":  n.Field,
		"op":     n.Op,
		"value":  n.Value,
		"values": n.Values,
		"from":   n.From,
		"to":     n.To,
	}
}

func sortedChildren(children []types.FilterNode) []interface{} {
	rendered := make([]struct {
		key   string
		value interface{}
	}, len(children))
	for i := range children {
		v := canonicalFilter(&children[i])
		b, _ := json.Marshal(v)
		rendered[i] = struct {
			key   string
			value interface{}
		}{key: string(b), value: v}
	}
	sort.Slice(rendered, func(i, j int) bool { return rendered[i].key < rendered[j].key })
	out := make([]interface{}, len(rendered))
	for i, r := range rendered {
		out[i] = r.value
	}
	return out
}
