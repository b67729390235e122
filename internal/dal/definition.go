// internal/dal/definition.go
package dal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Default fields added to every definition.
const (
	CreatedAtProperty = "createdAt"
	UpdatedAtProperty = "updatedAt"
	CreatedAtColumn   = "created_at"
	UpdatedAtColumn   = "updated_at"
)

var (
	ErrUnknownEntity       = errors.New("unknown entity")
	ErrInvalidDefinition   = errors.New("invalid entity definition")
	ErrDuplicateDefinition = errors.New("entity already registered")
)

// EntityDefinition is what a plugin implements to register an entity.
type EntityDefinition interface {
	EntityName() string
	DefineFields() *FieldCollection
	NewEntity() Entity
	NewCollection() Collection
}

// RegisteredDefinition is a definition that passed validation, with the
// default timestamp fields appended.
type RegisteredDefinition struct {
	EntityDefinition
	fields     *FieldCollection
	primaryKey *Field
}

// Fields returns the declared fields followed by createdAt and updatedAt.
func (d *RegisteredDefinition) Fields() *FieldCollection {
	return d.fields
}

// PrimaryKey returns the single id field.
func (d *RegisteredDefinition) PrimaryKey() *Field {
	return d.primaryKey
}

// URLName is the entity name as used in API paths: k_b_a_data -> k-b-a-data.
func (d *RegisteredDefinition) URLName() string {
	return URLName(d.EntityName())
}

func URLName(entityName string) string {
	return strings.ReplaceAll(entityName, "_", "-")
}

// Compile validates def and appends the default fields.
func Compile(def EntityDefinition) (*RegisteredDefinition, error) {
	name := def.EntityName()
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrInvalidDefinition)
	}
	declared := def.DefineFields()
	if declared == nil || declared.Len() == 0 {
		return nil, fmt.Errorf("%w: %s declares no fields", ErrInvalidDefinition, name)
	}

	seenProps := make(map[string]bool)
	seenCols := make(map[string]bool)
	for _, f := range declared.All() {
		if f.PropertyName == "" || f.StorageName == "" {
			return nil, fmt.Errorf("%w: %s has a field without name", ErrInvalidDefinition, name)
		}
		switch f.PropertyName {
		case CreatedAtProperty, UpdatedAtProperty:
			return nil, fmt.Errorf("%w: %s redeclares default field %s", ErrInvalidDefinition, name, f.PropertyName)
		}
		switch f.StorageName {
		case CreatedAtColumn, UpdatedAtColumn:
			return nil, fmt.Errorf("%w: %s redeclares default column %s", ErrInvalidDefinition, name, f.StorageName)
		}
		if seenProps[f.PropertyName] || seenCols[f.StorageName] {
			return nil, fmt.Errorf("%w: %s declares %s twice", ErrInvalidDefinition, name, f.PropertyName)
		}
		seenProps[f.PropertyName] = true
		seenCols[f.StorageName] = true
	}

	pks := declared.PrimaryKeys()
	if len(pks) != 1 {
		return nil, fmt.Errorf("%w: %s needs exactly one primary key, has %d", ErrInvalidDefinition, name, len(pks))
	}
	if pks[0].Kind != KindID {
		return nil, fmt.Errorf("%w: %s primary key %s is not an id field", ErrInvalidDefinition, name, pks[0].PropertyName)
	}

	fields := append(declared.All(),
		NewDateTimeField(CreatedAtColumn, CreatedAtProperty).AddFlags(Required),
		NewDateTimeField(UpdatedAtColumn, UpdatedAtProperty),
	)
	return &RegisteredDefinition{
		EntityDefinition: def,
		fields:           NewFieldCollection(fields...),
		primaryKey:       pks[0],
	}, nil
}

// DefinitionRegistry holds every entity definition known to the kernel.
type DefinitionRegistry struct {
	mu          sync.RWMutex
	definitions map[string]*RegisteredDefinition
}

func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{definitions: make(map[string]*RegisteredDefinition)}
}

// Register compiles def and makes it available by entity name.
func (r *DefinitionRegistry) Register(def EntityDefinition) (*RegisteredDefinition, error) {
	compiled, err := Compile(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[compiled.EntityName()]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDefinition, compiled.EntityName())
	}
	r.definitions[compiled.EntityName()] = compiled
	return compiled, nil
}

// Get returns the definition registered under entityName.
func (r *DefinitionRegistry) Get(entityName string) (*RegisteredDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[entityName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityName)
	}
	return d, nil
}

// GetByURLName resolves k-b-a-data style names.
func (r *DefinitionRegistry) GetByURLName(urlName string) (*RegisteredDefinition, error) {
	return r.Get(strings.ReplaceAll(urlName, "-", "_"))
}

// Definitions returns all registered definitions sorted by entity name.
func (r *DefinitionRegistry) Definitions() []*RegisteredDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RegisteredDefinition, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EntityName() < out[j].EntityName()
	})
	return out
}
