package models

import "time"

// Field types accepted in a collection schema
const (
	FieldString       = "string"
	FieldInteger      = "integer"
	FieldFloat        = "float"
	FieldBoolean      = "boolean"
	FieldDatetime     = "datetime"
	FieldEmail        = "email"
	FieldURL          = "url"
	FieldEnum         = "enum"
	FieldRelationship = "relationship"
)

// Field describes one attribute of a collection
type Field struct {
	Name     string      `json:"name" validate:"required,max=64,excludesall=$"`
	Type     string      `json:"type" validate:"required,oneof=string integer float boolean datetime email url enum relationship"`
	Required bool        `json:"required"`
	IsArray  bool        `json:"isArray"`
	Default  interface{} `json:"default,omitempty"`
	Enum     []string    `json:"enum,omitempty" validate:"required_if=Type enum"`
	Relation string      `json:"relation,omitempty" validate:"required_if=Type relationship"`
}

// CollectionSchema is a named, slugged set of fields that documents conform to
type CollectionSchema struct {
	ID        string    `gorm:"primaryKey;type:char(36)" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;size:191;not null" json:"slug"`
	Fields    FieldList `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for CollectionSchema
func (CollectionSchema) TableName() string {
	return "collections"
}

// Field returns the named field, if the schema has it
func (c *CollectionSchema) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
