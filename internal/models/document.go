package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a single entry of a collection
type Document struct {
	ID           string    `gorm:"primaryKey;type:char(36)"`
	CollectionID string    `gorm:"type:char(36);not null;uniqueIndex:idx_collection_slug,priority:1"`
	Slug         *string   `gorm:"size:191;uniqueIndex:idx_collection_slug,priority:2"`
	Data         DataMap   `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// TableName overrides the table name for Document
func (Document) TableName() string {
	return "documents"
}

// StoredFile is the metadata of a file kept in local bucket storage
type StoredFile struct {
	ID        string    `gorm:"primaryKey;type:char(36)" json:"id"`
	Bucket    string    `gorm:"size:64;not null;index" json:"bucket"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	MimeType  string    `gorm:"size:127" json:"mimeType"`
	Size      int64     `json:"size"`
	Path      string    `gorm:"size:512" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the table name for StoredFile
func (StoredFile) TableName() string {
	return "files"
}

// UsageRecord is one usage event of an entity (tag, object, mood or meme)
type UsageRecord struct {
	ID        string    `gorm:"primaryKey;type:char(36)"`
	EntityID  string    `gorm:"type:char(36);not null;index:idx_usage_entity_created,priority:1"`
	MemeID    string    `gorm:"type:char(36);index"`
	EventType string    `gorm:"size:32;not null"`
	UserID    string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null;index:idx_usage_entity_created,priority:2"`
}

// TableName overrides the table name for UsageRecord
func (UsageRecord) TableName() string {
	return "usage_records"
}

// TeamMembership grants a user membership of a team, e.g. the admin team
type TeamMembership struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	TeamID    string `gorm:"size:64;not null;uniqueIndex:idx_team_user,priority:1"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_team_user,priority:2"`
	Roles     datatypes.JSONSlice[string]
	CreatedAt time.Time
}

// TableName overrides the table name for TeamMembership
func (TeamMembership) TableName() string {
	return "team_memberships"
}
