package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DataMap is the free-form key/value bag stored with every document
type DataMap map[string]interface{}

// Value marshals the map for storage
func (m DataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan unmarshals a stored map
func (m *DataMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// GormDBDataType picks the JSON column type for each driver
func (DataMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// FieldList is the stored attribute list of a collection
type FieldList []Field

// Value marshals the list for storage
func (l FieldList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan unmarshals a stored list
func (l *FieldList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// GormDBDataType picks the JSON column type for each driver
func (FieldList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

func scanJSON(value interface{}, target interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column value %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// jsonColumnType resolves MSSQL lacking a json type.
func jsonColumnType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}
