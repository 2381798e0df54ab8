package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

func (s *Scheduler) CreateTable(ctx context.Context, number, seats int) (table *models.Table, err error) {
	ctx, span := startSpan(ctx, "scheduler.CreateTable", attribute.Int("table.number", number))
	defer func() { endSpan(span, err) }()

	if number < 1 {
		return nil, validationError("table number must be positive")
	}
	if seats < 1 {
		return nil, validationError("seats must be at least 1")
	}

	release, err := s.locks.Lock(ctx, fmt.Sprintf("table-number:%d", number))
	if err != nil {
		return nil, err
	}
	defer release()

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Table{}).Where("number = ?", number).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check table number: %w", err)
	}
	if existing > 0 {
		return nil, &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("table number %d already exists", number),
			Details: map[string]interface{}{"number": number},
		}
	}

	table = &models.Table{Number: number, Seats: seats, Status: models.TableAvailable}
	if err := s.db.WithContext(ctx).Create(table).Error; err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{"table_id": table.ID, "number": number, "seats": seats}).Info("Table created")
	release()
	s.publisher.Publish(ctx, newEvent(EventTableUpdated, table.ID, table))
	return table, nil
}

func (s *Scheduler) ListTables(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if err := s.db.WithContext(ctx).Order("number asc").Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (s *Scheduler) GetTable(ctx context.Context, id string) (*models.Table, error) {
	var table models.Table
	if err := s.db.WithContext(ctx).First(&table, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("table", id)
		}
		return nil, fmt.Errorf("load table: %w", err)
	}
	return &table, nil
}

// UpdateTableStatus sets the display status of a table. It has no effect on
// which reservations the table accepts.
func (s *Scheduler) UpdateTableStatus(ctx context.Context, id string, status models.TableStatus) (table *models.Table, err error) {
	ctx, span := startSpan(ctx, "scheduler.UpdateTableStatus", attribute.String("table.id", id))
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, validationError("invalid table status %q", status)
	}

	release, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	table, err = s.GetTable(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(table).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": s.now().UTC(),
	}).Error; err != nil {
		return nil, fmt.Errorf("update table: %w", err)
	}
	table.Status = status

	utils.InfoLogger.WithFields(logrus.Fields{"table_id": id, "status": status}).Info("Table status updated")
	release()
	s.publisher.Publish(ctx, newEvent(EventTableUpdated, table.ID, table))
	return table, nil
}

// DeleteTable removes a table that has no upcoming reservations. Past and
// cancelled reservations keep pointing at the deleted row.
func (s *Scheduler) DeleteTable(ctx context.Context, id string) (err error) {
	ctx, span := startSpan(ctx, "scheduler.DeleteTable", attribute.String("table.id", id))
	defer func() { endSpan(span, err) }()

	release, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("table", id)
			}
			return fmt.Errorf("load table: %w", err)
		}

		var active int64
		if err := tx.Model(&models.Reservation{}).
			Where("table_id = ? AND status <> ? AND end_at > ?", id, models.ReservationCancelled, s.now().UTC()).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count reservations: %w", err)
		}
		if active > 0 {
			return &Error{
				Kind:    KindTableInUse,
				Message: fmt.Sprintf("table %d has %d active reservations", table.Number, active),
				Details: map[string]interface{}{"table_id": id, "active_reservations": active},
			}
		}

		return tx.Delete(&table).Error
	})
	if err != nil {
		return err
	}

	utils.InfoLogger.WithField("table_id", id).Info("Table deleted")
	return nil
}
