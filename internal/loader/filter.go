package loader

import "github.com/ancients-collective/benchaudit/internal/types"

// Filter selects tasks by level, profile, domain and ID. All non-empty
// fields must match (AND). Within a field any listed value matches (OR).
type Filter struct {
	Levels   []string
	Profiles []string
	Domains  []string
	IDs      []string
}

// IsEmpty reports whether the filter selects every task.
func (f Filter) IsEmpty() bool {
	return len(f.Levels) == 0 && len(f.Profiles) == 0 && len(f.Domains) == 0 && len(f.IDs) == 0
}

// Apply returns the matching tasks in their original order.
func (f Filter) Apply(tasks []*types.AuditTask) []*types.AuditTask {
	if f.IsEmpty() {
		return tasks
	}
	out := make([]*types.AuditTask, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Match reports whether a single task passes the filter.
func (f Filter) Match(t *types.AuditTask) bool {
	if len(f.Levels) > 0 && !contains(f.Levels, t.Level) {
		return false
	}
	if len(f.Domains) > 0 && !contains(f.Domains, t.Domain) {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, t.ID) {
		return false
	}
	if len(f.Profiles) > 0 {
		for _, p := range f.Profiles {
			if t.HasProfile(p) {
				return true
			}
		}
		return false
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
