package service

import "github.com/prismbi/prism/internal/model"

// Allowed reports whether a role grants the given HTTP verb on a datasource
// component. Rules match on datasource UID and component, either of which
// may be the "*" wildcard, and the role itself must be active.
func Allowed(role *model.Role, datasourceUID, component string, verb int) bool {
	if role == nil || !role.IsActive {
		return false
	}
	for _, a := range role.Access {
		if !ruleMatches(a, datasourceUID, component) {
			continue
		}
		if a.VerbMask&verb != 0 {
			return true
		}
	}
	return false
}

// AllowsRestricted reports whether any rule matching the datasource exposes
// restricted metrics to this role.
func AllowsRestricted(role *model.Role, datasourceUID string) bool {
	if role == nil || !role.IsActive {
		return false
	}
	for _, a := range role.Access {
		if (a.DatasourceUID == "*" || a.DatasourceUID == datasourceUID) && a.AllowRestricted {
			return true
		}
	}
	return false
}

func ruleMatches(a model.RoleAccess, datasourceUID, component string) bool {
	if a.DatasourceUID != "*" && a.DatasourceUID != datasourceUID {
		return false
	}
	if a.Component != "*" && a.Component != component {
		return false
	}
	return true
}
