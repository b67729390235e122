// internal/dal/field.go
package dal

import "fmt"

// FieldKind is the semantic type of a declared field.
type FieldKind string

const (
	KindID       FieldKind = "id"
	KindString   FieldKind = "string"
	KindBool     FieldKind = "bool"
	KindDateTime FieldKind = "datetime"
)

// Flag is a constraint attached to a field.
type Flag string

const (
	Required   Flag = "required"
	PrimaryKey Flag = "primary_key"
)

// Field describes one column of an entity and the property it maps to.
type Field struct {
	StorageName  string
	PropertyName string
	Kind         FieldKind
	Flags        []Flag
}

func newField(kind FieldKind, storageName, propertyName string) *Field {
	return &Field{StorageName: storageName, PropertyName: propertyName, Kind: kind}
}

// NewIDField declares a 128-bit identifier field.
func NewIDField(storageName, propertyName string) *Field {
	return newField(KindID, storageName, propertyName)
}

// NewStringField declares a variable-length text field.
func NewStringField(storageName, propertyName string) *Field {
	return newField(KindString, storageName, propertyName)
}

// NewBoolField declares a boolean field.
func NewBoolField(storageName, propertyName string) *Field {
	return newField(KindBool, storageName, propertyName)
}

// NewDateTimeField declares a timestamp field.
func NewDateTimeField(storageName, propertyName string) *Field {
	return newField(KindDateTime, storageName, propertyName)
}

// AddFlags attaches constraints and returns the field for chaining.
func (f *Field) AddFlags(flags ...Flag) *Field {
	for _, flag := range flags {
		if !f.Is(flag) {
			f.Flags = append(f.Flags, flag)
		}
	}
	return f
}

// Is reports whether the field carries the given flag.
func (f *Field) Is(flag Flag) bool {
	for _, fl := range f.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}

func (f *Field) String() string {
	return fmt.Sprintf("%s(%s)", f.PropertyName, f.Kind)
}

// FieldCollection is an ordered set of fields.
type FieldCollection struct {
	fields []*Field
}

// NewFieldCollection keeps the fields in declaration order.
func NewFieldCollection(fields ...*Field) *FieldCollection {
	out := make([]*Field, 0, len(fields))
	for _, f := range fields {
		if f != nil {
			out = append(out, f)
		}
	}
	return &FieldCollection{fields: out}
}

// All returns a copy of the fields in declaration order.
func (c *FieldCollection) All() []*Field {
	out := make([]*Field, len(c.fields))
	copy(out, c.fields)
	return out
}

func (c *FieldCollection) Len() int {
	return len(c.fields)
}

// Get looks a field up by property name.
func (c *FieldCollection) Get(propertyName string) (*Field, bool) {
	for _, f := range c.fields {
		if f.PropertyName == propertyName {
			return f, true
		}
	}
	return nil, false
}

// GetByStorageName looks a field up by column name.
func (c *FieldCollection) GetByStorageName(storageName string) (*Field, bool) {
	for _, f := range c.fields {
		if f.StorageName == storageName {
			return f, true
		}
	}
	return nil, false
}

// PrimaryKeys returns the fields flagged as primary key.
func (c *FieldCollection) PrimaryKeys() []*Field {
	var out []*Field
	for _, f := range c.fields {
		if f.Is(PrimaryKey) {
			out = append(out, f)
		}
	}
	return out
}

// StorageNames returns the column names in declaration order.
func (c *FieldCollection) StorageNames() []string {
	out := make([]string, len(c.fields))
	for i, f := range c.fields {
		out[i] = f.StorageName
	}
	return out
}
