package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	DefaultSeatingDuration = 2 * time.Hour

	// maxCommitAttempts bounds retries after an optimistic version clash with
	// another process.
	maxCommitAttempts = 3
)

// Window is the half-open interval [Start, End) a reservation occupies.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Overlaps(other Window) bool {
	return other.Start.Before(w.End) && w.Start.Before(other.End)
}

type Availability struct {
	TableID                  string  `json:"table_id"`
	Available                bool    `json:"available"`
	Conflict                 *Window `json:"conflict,omitempty"`
	ConflictingReservationID string  `json:"conflicting_reservation_id,omitempty"`
}

type SchedulerOptions struct {
	SeatingDuration time.Duration
	AutoConfirm     bool
	Publisher       Publisher
	Now             func() time.Time
}

// Scheduler decides which reservations a table may take and keeps the
// non-cancelled reservations of every table pairwise non-overlapping.
type Scheduler struct {
	db          *gorm.DB
	locks       *KeyedMutex
	duration    time.Duration
	autoConfirm bool
	publisher   Publisher
	now         func() time.Time
}

func NewScheduler(db *gorm.DB, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		db:          db,
		locks:       NewKeyedMutex(),
		duration:    opts.SeatingDuration,
		autoConfirm: opts.AutoConfirm,
		publisher:   opts.Publisher,
		now:         opts.Now,
	}
	if s.duration <= 0 {
		s.duration = DefaultSeatingDuration
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Scheduler) SeatingDuration() time.Duration {
	return s.duration
}

func (s *Scheduler) windowAt(start time.Time) Window {
	start = normalizeTime(start)
	return Window{Start: start, End: start.Add(s.duration)}
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// CheckAvailability reports, per table and in the given order, whether the
// window starting at start is free. It reads the latest committed state
// without taking table locks.
func (s *Scheduler) CheckAvailability(ctx context.Context, tableIDs []string, start time.Time) (result []Availability, err error) {
	ctx, span := startSpan(ctx, "scheduler.CheckAvailability", attribute.Int("tables.count", len(tableIDs)))
	defer func() { endSpan(span, err) }()

	if start.IsZero() {
		return nil, validationError("start time is required")
	}
	if len(tableIDs) == 0 {
		return []Availability{}, nil
	}

	db := s.db.WithContext(ctx)
	ids := uniqueSorted(tableIDs)

	var count int64
	if err := db.Model(&models.Table{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count tables: %w", err)
	}
	if int(count) != len(ids) {
		missing, err := s.firstMissingTable(db, ids)
		if err != nil {
			return nil, err
		}
		return nil, notFoundError("table", missing)
	}

	window := s.windowAt(start)
	conflicts, err := overlappingReservations(db, ids, window, "")
	if err != nil {
		return nil, err
	}

	result = make([]Availability, 0, len(tableIDs))
	for _, id := range tableIDs {
		av := Availability{TableID: id, Available: true}
		if r, ok := conflicts[id]; ok {
			av.Available = false
			av.Conflict = &Window{Start: r.StartAt.UTC(), End: r.EndAt.UTC()}
			av.ConflictingReservationID = r.ID
		}
		result = append(result, av)
	}
	return result, nil
}

func (s *Scheduler) firstMissingTable(db *gorm.DB, ids []string) (string, error) {
	var found []string
	if err := db.Model(&models.Table{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return "", fmt.Errorf("load tables: %w", err)
	}
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return id, nil
		}
	}
	return "", nil
}

// overlappingReservations returns, per table, the earliest non-cancelled
// reservation overlapping window. excludeID skips one reservation.
func overlappingReservations(db *gorm.DB, tableIDs []string, window Window, excludeID string) (map[string]models.Reservation, error) {
	query := db.Where("table_id IN ? AND status <> ? AND start_at < ? AND end_at > ?",
		tableIDs, models.ReservationCancelled, window.End, window.Start)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var candidates []models.Reservation
	if err := query.Order("start_at asc").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	conflicts := make(map[string]models.Reservation)
	for _, r := range candidates {
		existing := Window{Start: r.StartAt, End: r.EndAt}
		if !existing.Overlaps(window) {
			continue
		}
		if _, seen := conflicts[r.TableID]; !seen {
			conflicts[r.TableID] = r
		}
	}
	return conflicts, nil
}

// CreateReservation books tableID for [start, start+D). The availability
// check is repeated inside the commit under the table's exclusive section;
// a concurrent booking that committed first makes this call fail with
// ErrSlotConflict. There is no fallback to another table.
func (s *Scheduler) CreateReservation(ctx context.Context, tableID string, start time.Time, partySize int, userID string) (res *models.Reservation, err error) {
	ctx, span := startSpan(ctx, "scheduler.CreateReservation",
		attribute.String("table.id", tableID),
		attribute.Int("reservation.party_size", partySize))
	defer func() { endSpan(span, err) }()

	switch {
	case tableID == "":
		return nil, validationError("table_id is required")
	case userID == "":
		return nil, validationError("user id is required")
	case partySize < 1:
		return nil, validationError("party size must be at least 1")
	case start.IsZero():
		return nil, validationError("start time is required")
	case start.Before(s.now()):
		return nil, validationError("start time %s is in the past", start.UTC().Format(time.RFC3339))
	}

	release, err := s.locks.Lock(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer release()

	window := s.windowAt(start)
	for attempt := 1; ; attempt++ {
		res, err = s.commitReservation(ctx, tableID, window, partySize, userID)
		if errors.Is(err, ErrStaleVersion) && attempt < maxCommitAttempts {
			continue
		}
		break
	}
	if err != nil {
		if KindOf(err) == KindSlotConflict {
			utils.InfoLogger.WithFields(logrus.Fields{
				"table_id": tableID,
				"start":    window.Start,
			}).Info("Reservation rejected: slot conflict")
		}
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"table_id":       tableID,
		"start":          res.StartAt,
		"status":         res.Status,
	}).Info("Reservation created")

	// subscribers never run inside the table's section
	release()
	s.publisher.Publish(ctx, newEvent(EventReservationCreated, res.ID, res))
	return res, nil
}

func (s *Scheduler) commitReservation(ctx context.Context, tableID string, window Window, partySize int, userID string) (*models.Reservation, error) {
	var created models.Reservation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, "id = ?", tableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("table", tableID)
			}
			return fmt.Errorf("load table: %w", err)
		}

		if partySize > table.Seats {
			return &Error{
				Kind:    KindCapacityExceeded,
				Message: fmt.Sprintf("party of %d exceeds the %d seats of table %d", partySize, table.Seats, table.Number),
				Details: map[string]interface{}{"table_id": table.ID, "seats": table.Seats, "party_size": partySize},
			}
		}

		conflicts, err := overlappingReservations(tx, []string{tableID}, window, "")
		if err != nil {
			return err
		}
		if existing, ok := conflicts[tableID]; ok {
			return slotConflictError(table, existing)
		}

		status := models.ReservationPending
		if s.autoConfirm {
			status = models.ReservationConfirmed
		}
		created = models.Reservation{
			TableID:   tableID,
			UserID:    userID,
			StartAt:   window.Start,
			EndAt:     window.End,
			PartySize: partySize,
			Status:    status,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		displayStatus := table.Status
		if displayStatus == models.TableAvailable {
			displayStatus = models.TableReserved
		}
		return s.bumpTable(tx, table, displayStatus)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// bumpTable advances the table version, failing with ErrStaleVersion when
// another process committed against the same table in the meantime.
func (s *Scheduler) bumpTable(tx *gorm.DB, table models.Table, status models.TableStatus) error {
	result := tx.Model(&models.Table{}).
		Where("id = ? AND version = ?", table.ID, table.Version).
		Updates(map[string]interface{}{
			"version":    table.Version + 1,
			"status":     status,
			"updated_at": s.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("update table: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func slotConflictError(table models.Table, existing models.Reservation) *Error {
	start, end := existing.StartAt.UTC(), existing.EndAt.UTC()
	return &Error{
		Kind: KindSlotConflict,
		Message: fmt.Sprintf("table %d is already reserved from %s to %s",
			table.Number, start.Format(time.RFC3339), end.Format(time.RFC3339)),
		Details: map[string]interface{}{
			"table_id":                   table.ID,
			"conflicting_reservation_id": existing.ID,
			"conflict_start":             start,
			"conflict_end":               end,
		},
	}
}

// ConfirmReservation moves a pending reservation to confirmed.
func (s *Scheduler) ConfirmReservation(ctx context.Context, id string) (res *models.Reservation, err error) {
	ctx, span := startSpan(ctx, "scheduler.ConfirmReservation", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	res, err = s.transitionReservation(ctx, id, func(tx *gorm.DB, r *models.Reservation) error {
		if !r.Status.CanTransitionTo(models.ReservationConfirmed) {
			return transitionError("reservation", r.ID, r.Status, models.ReservationConfirmed)
		}
		return updateReservationStatus(tx, r, map[string]interface{}{
			"status":     models.ReservationConfirmed,
			"updated_at": s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithField("reservation_id", res.ID).Info("Reservation confirmed")
	s.publisher.Publish(ctx, newEvent(EventReservationConfirmed, res.ID, res))
	return res, nil
}

// CancelReservation cancels a pending or confirmed reservation on behalf of
// its owner or a staff member. Cancelling twice reports ErrAlreadyCancelled.
func (s *Scheduler) CancelReservation(ctx context.Context, id string, actor Actor) (res *models.Reservation, err error) {
	ctx, span := startSpan(ctx, "scheduler.CancelReservation", attribute.String("reservation.id", id))
	defer func() { endSpan(span, err) }()

	res, err = s.transitionReservation(ctx, id, func(tx *gorm.DB, r *models.Reservation) error {
		if !actor.canAccess(r.UserID) {
			return &Error{Kind: KindForbidden, Message: "only the owner or staff can cancel this reservation"}
		}
		if r.Status == models.ReservationCancelled {
			return &Error{
				Kind:    KindAlreadyCancelled,
				Message: fmt.Sprintf("reservation %s is already cancelled", r.ID),
				Details: map[string]interface{}{"reservation_id": r.ID, "cancelled_at": r.CancelledAt},
			}
		}

		now := s.now().UTC()
		actorID := actor.UserID
		if err := updateReservationStatus(tx, r, map[string]interface{}{
			"status":       models.ReservationCancelled,
			"cancelled_by": actorID,
			"cancelled_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		r.CancelledBy = &actorID
		r.CancelledAt = &now

		return s.releaseTableHint(tx, r.TableID)
	})
	if err != nil {
		if KindOf(err) == KindAlreadyCancelled {
			utils.InfoLogger.WithField("reservation_id", id).Info("Reservation already cancelled")
		}
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"cancelled_by":   actor.UserID,
	}).Info("Reservation cancelled")
	s.publisher.Publish(ctx, newEvent(EventReservationCancelled, res.ID, res))
	return res, nil
}

// transitionReservation runs fn on the latest committed reservation inside
// the table's exclusive section and a transaction.
func (s *Scheduler) transitionReservation(ctx context.Context, id string, fn func(tx *gorm.DB, r *models.Reservation) error) (*models.Reservation, error) {
	var located models.Reservation
	if err := s.db.WithContext(ctx).Select("id", "table_id").First(&located, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("reservation", id)
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	release, err := s.locks.Lock(ctx, located.TableID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res models.Reservation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res, "id = ?", id).Error; err != nil {
			return fmt.Errorf("reload reservation: %w", err)
		}
		return fn(tx, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func updateReservationStatus(tx *gorm.DB, r *models.Reservation, updates map[string]interface{}) error {
	result := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", r.ID, r.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update reservation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	r.Status = updates["status"].(models.ReservationStatus)
	return nil
}

// releaseTableHint flips a reserved table back to available once it has no
// upcoming reservations.
func (s *Scheduler) releaseTableHint(tx *gorm.DB, tableID string) error {
	var active int64
	if err := tx.Model(&models.Reservation{}).
		Where("table_id = ? AND status <> ? AND end_at > ?", tableID, models.ReservationCancelled, s.now().UTC()).
		Count(&active).Error; err != nil {
		return fmt.Errorf("count reservations: %w", err)
	}
	if active > 0 {
		return nil
	}
	return tx.Model(&models.Table{}).
		Where("id = ? AND status = ?", tableID, models.TableReserved).
		Updates(map[string]interface{}{"status": models.TableAvailable, "updated_at": s.now().UTC()}).Error
}

// ListAvailableTables returns the tables seating at least minSeats that are
// free for [start, start+D), smallest fitting tables first.
func (s *Scheduler) ListAvailableTables(ctx context.Context, start time.Time, minSeats int) (tables []models.Table, err error) {
	ctx, span := startSpan(ctx, "scheduler.ListAvailableTables", attribute.Int("tables.min_seats", minSeats))
	defer func() { endSpan(span, err) }()

	if minSeats < 1 {
		minSeats = 1
	}

	var candidates []models.Table
	if err := s.db.WithContext(ctx).
		Where("seats >= ?", minSeats).
		Order("seats asc, number asc").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	if len(candidates) == 0 {
		return []models.Table{}, nil
	}

	ids := make([]string, len(candidates))
	for i, t := range candidates {
		ids[i] = t.ID
	}
	availability, err := s.CheckAvailability(ctx, ids, start)
	if err != nil {
		return nil, err
	}

	tables = make([]models.Table, 0, len(candidates))
	for i, av := range availability {
		if av.Available {
			tables = append(tables, candidates[i])
		}
	}
	return tables, nil
}

func (s *Scheduler) GetReservation(ctx context.Context, id string, actor Actor) (*models.Reservation, error) {
	var res models.Reservation
	if err := s.db.WithContext(ctx).Preload("Table").First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("reservation", id)
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if !actor.canAccess(res.UserID) {
		return nil, &Error{Kind: KindForbidden, Message: "access denied"}
	}
	return &res, nil
}

// ListReservations returns every reservation for staff and only the
// caller's own for clients.
func (s *Scheduler) ListReservations(ctx context.Context, actor Actor) ([]models.Reservation, error) {
	query := s.db.WithContext(ctx).Preload("Table").Order("start_at asc")
	if !actor.IsStaff() {
		query = query.Where("user_id = ?", actor.UserID)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}
