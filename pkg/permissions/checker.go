// Package permissions checks a user's permission list against required
// permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "stock.*")
//   - "resource.action" - Specific action (e.g., "stock.batches.read")
package permissions

import (
	"strings"
)

// Permissions understood by the stock service. Mutating the batch ledger
// and tombstoning batches require write; classification and aggregation
// endpoints require read.
const (
	StockRead     = "stock.batches.read"
	StockWrite    = "stock.batches.write"
	CatalogRead   = "catalog.read"
	CatalogWrite  = "catalog.write"
	StockWildcard = "stock.*"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "stock.*" matches "stock.batches.read", "stock.batches.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "stock.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user has all of the required permissions.
func HasAllPermissions(userPerms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(userPerms, req) {
			return false
		}
	}
	return true
}

// CanMutateBatch reports whether the permission set allows creating,
// deleting or appending ledger entries against batches. This is the single
// capability check consulted at the boundary of every mutating operation.
func CanMutateBatch(userPerms []string) bool {
	return HasPermission(userPerms, StockWrite)
}

// MergePermissions merges multiple permission sets, removing duplicates.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}
