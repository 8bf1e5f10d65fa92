package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusActive marks a schema that finished migrating.
const StatusActive = "active"

// BootstrapState is a single-row table describing the schema the database
// was last migrated to.
type BootstrapState struct {
	ID            int       `json:"-" gorm:"primaryKey;autoIncrement:false"`
	Status        string    `json:"status" gorm:"not null"`
	SchemaVersion string    `json:"schema_version" gorm:"not null"`
	Checksum      *string   `json:"checksum,omitempty"`
	ActivatedAt   time.Time `json:"activated_at" gorm:"not null"`
}

func (BootstrapState) TableName() string {
	return "schema_bootstrap_state"
}

func activateBootstrapState(ctx context.Context, db *gorm.DB, version, checksum string) (*BootstrapState, error) {
	if version == "" {
		return nil, errors.New("schema version is required for bootstrap state activation")
	}

	state := &BootstrapState{
		ID:            1,
		Status:        StatusActive,
		SchemaVersion: version,
		ActivatedAt:   time.Now().UTC(),
	}
	if checksum != "" {
		state.Checksum = &checksum
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "schema_version", "checksum", "activated_at"}),
	}).Create(state).Error
	if err != nil {
		return nil, fmt.Errorf("activate bootstrap state: %w", err)
	}
	return state, nil
}

// CurrentState returns the recorded bootstrap state, or nil before the
// first migration.
func CurrentState(ctx context.Context, db *gorm.DB) (*BootstrapState, error) {
	if !db.Migrator().HasTable(&BootstrapState{}) {
		return nil, nil
	}
	var state BootstrapState
	if err := db.WithContext(ctx).Where("id = ?", 1).Limit(1).Find(&state).Error; err != nil {
		return nil, err
	}
	if state.ID == 0 {
		return nil, nil
	}
	return &state, nil
}
