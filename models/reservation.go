package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ReservationTransitions lists the statuses reachable from each status.
// Cancelled is terminal.
var ReservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCancelled},
	ReservationCancelled: {},
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range ReservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation holds a table for the half-open window [StartAt, EndAt).
type Reservation struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	TableID     string            `gorm:"type:varchar(36);not null;index:idx_reservation_table_status" json:"table_id"`
	Table       *Table            `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table,omitempty"`
	UserID      string            `gorm:"type:varchar(64);not null;index" json:"user_id"`
	StartAt     time.Time         `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time         `gorm:"not null" json:"end_at"`
	PartySize   int               `gorm:"not null" json:"party_size"`
	Status      ReservationStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_reservation_table_status" json:"status"`
	CancelledBy *string           `gorm:"type:varchar(64)" json:"cancelled_by,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the reservation still blocks its window.
func (r *Reservation) Active() bool {
	return r.Status != ReservationCancelled
}
