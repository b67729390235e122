package kbadata

import "kba-plugin/internal/dal"

const EntityName = "k_b_a_data"

// Definition declares the k_b_a_data entity.
type Definition struct{}

var _ dal.EntityDefinition = Definition{}

func (Definition) EntityName() string {
	return EntityName
}

func (Definition) DefineFields() *dal.FieldCollection {
	return dal.NewFieldCollection(
		dal.NewIDField("id", "id").AddFlags(dal.Required, dal.PrimaryKey),
		dal.NewStringField("name", "name"),
		dal.NewStringField("description", "description"),
		dal.NewBoolField("active", "active"),
	)
}

func (Definition) NewEntity() dal.Entity {
	return &Entity{}
}

func (Definition) NewCollection() dal.Collection {
	return NewCollection()
}
