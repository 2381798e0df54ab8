package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved:
		return true
	}
	return false
}

// Table is a physical table. Status is a display hint only; conflict checks
// always go through the reservations of the table. Deleted tables are kept
// so past reservations still resolve.
type Table struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Number    int            `gorm:"not null;index" json:"number"`
	Seats     int            `gorm:"not null" json:"seats"`
	Status    TableStatus    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	Version   int64          `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Table) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TableAvailable
	}
	return nil
}
