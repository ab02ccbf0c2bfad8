package variable

import (
	"fmt"
	"sort"
)

// Registry is a static catalog of the variables the coordinator knows
// about. It is read-only after construction, so lookups need no locking.
type Registry struct {
	byID map[string]Variable
	ids  []string
}

// NewRegistry builds a registry from a variable list.
// Fails with ErrDuplicateVariable if two entries share an ID or wire name.
func NewRegistry(vars []Variable) (*Registry, error) {
	byID := make(map[string]Variable, len(vars))
	byName := make(map[string]string, len(vars))
	ids := make([]string, 0, len(vars))

	for _, v := range vars {
		if _, exists := byID[v.ID]; exists {
			return nil, fmt.Errorf("%w: id %q", ErrDuplicateVariable, v.ID)
		}
		if prev, exists := byName[v.Name]; exists {
			return nil, fmt.Errorf("%w: wire name %q shared by %q and %q", ErrDuplicateVariable, v.Name, prev, v.ID)
		}
		byID[v.ID] = v
		byName[v.Name] = v.ID
		ids = append(ids, v.ID)
	}

	sort.Strings(ids)

	return &Registry{byID: byID, ids: ids}, nil
}

// Resolve returns the variable for an ID.
// Fails with ErrUnknownVariable if the ID is not in the catalog.
func (r *Registry) Resolve(id string) (Variable, error) {
	v, ok := r.byID[id]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %q", ErrUnknownVariable, id)
	}
	return v, nil
}

// All returns every variable, ordered by ID.
func (r *Registry) All() []Variable {
	vars := make([]Variable, 0, len(r.ids))
	for _, id := range r.ids {
		vars = append(vars, r.byID[id])
	}
	return vars
}

// IDs returns the sorted variable IDs.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Count returns the number of variables in the catalog.
func (r *Registry) Count() int {
	return len(r.ids)
}
