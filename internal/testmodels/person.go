// Package testmodels holds the person fixture shared by tests and examples.
package testmodels

import (
	"github.com/brunoga/optimistic"
	"github.com/brunoga/optimistic/model"
)

// PersonDefinition describes a person with a car and a collection of shoes.
var PersonDefinition = &model.Definition{
	Fields: optimistic.Schema{
		"car":   optimistic.FieldChild,
		"shoes": optimistic.FieldCollection,
	},
	Types: map[string]*model.Definition{
		"car": {
			Defaults: map[string]any{
				"make":  "Volkswagen",
				"model": "Beetle",
			},
		},
		"shoes": {},
	},
}

// PersonData returns a fresh copy of the fixture person.
func PersonData() optimistic.Snapshot {
	return optimistic.Snapshot{
		"id":   1.0,
		"name": "Ada",
		"age":  36.0,
		"car": map[string]any{
			"id":    10.0,
			"make":  "Volkswagen",
			"model": "Beetle",
			"color": "Yellow",
		},
		"shoes": []any{
			map[string]any{"id": 4.0, "style": "Converse", "color": "Black"},
		},
	}
}

// NewShoe returns the shoe the fixture server appends.
func NewShoe() map[string]any {
	return map[string]any{"id": 5.0, "style": "Vans", "color": "Brown"}
}

// NewPerson creates a live person model from PersonData.
func NewPerson() *model.Model {
	return model.FromSnapshot(PersonDefinition, PersonData())
}
