package services

import (
	"time"

	"gorm.io/gorm"
)

type Config struct {
	SeatingDuration time.Duration
	AutoConfirm     bool
	Publisher       Publisher
	Now             func() time.Time
}

// Services bundles the three core components over one database.
type Services struct {
	Scheduler *Scheduler
	Orders    *OrderManager
	Ledger    *Ledger
}

func New(db *gorm.DB, cfg Config) *Services {
	ledger := NewLedger(db, LedgerOptions{Publisher: cfg.Publisher, Now: cfg.Now})
	return &Services{
		Scheduler: NewScheduler(db, SchedulerOptions{
			SeatingDuration: cfg.SeatingDuration,
			AutoConfirm:     cfg.AutoConfirm,
			Publisher:       cfg.Publisher,
			Now:             cfg.Now,
		}),
		Orders: NewOrderManager(db, ledger, OrderManagerOptions{Publisher: cfg.Publisher, Now: cfg.Now}),
		Ledger: ledger,
	}
}
