package dal

import (
	"reflect"

	"github.com/google/uuid"
)

type widget struct {
	BaseEntity
	Label   *string `json:"label"`
	Enabled *bool   `json:"enabled"`
}

func (w *widget) Hydrate(values map[string]any) error {
	if err := w.HydrateBase(values); err != nil {
		return err
	}
	w.Label = StringValue(values, "label")
	w.Enabled = BoolValue(values, "enabled")
	return nil
}

type gadget struct {
	BaseEntity
}

func (g *gadget) Hydrate(values map[string]any) error {
	return g.HydrateBase(values)
}

type widgetDefinition struct {
	name   string
	fields *FieldCollection
}

func newWidgetDefinition() widgetDefinition {
	return widgetDefinition{
		name: "widget",
		fields: NewFieldCollection(
			NewIDField("id", "id").AddFlags(Required, PrimaryKey),
			NewStringField("label", "label").AddFlags(Required),
			NewBoolField("enabled", "enabled"),
		),
	}
}

func (d widgetDefinition) EntityName() string             { return d.name }
func (d widgetDefinition) DefineFields() *FieldCollection { return d.fields }
func (d widgetDefinition) NewEntity() Entity              { return &widget{} }
func (d widgetDefinition) NewCollection() Collection {
	return NewEntityCollection(reflect.TypeOf((*widget)(nil)))
}

func newWidget(label string) *widget {
	return &widget{BaseEntity: BaseEntity{ID: uuid.New()}, Label: &label}
}
