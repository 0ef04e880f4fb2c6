package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"rental-service/internal/models"
	"rental-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	codeCheckViolation     = "23514"
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// #### availability slots ####

func (s *Storage) CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) (string, error) {
	const op = "storage.postgres.CreateSlot"

	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO availability_slots (id, listing_id, start_at, end_at)
		VALUES ($1, $2, $3, $4)`,
		id,
		slot.ListingID,
		slot.StartAt,
		slot.EndAt,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}

	return id, nil
}

// CreateSlots inserts the batch in one transaction. Rows rejected by the
// overlap constraint are skipped; the number of inserted rows is returned.
func (s *Storage) CreateSlots(ctx context.Context, slots []models.AvailabilitySlot) (int, error) {
	const op = "storage.postgres.CreateSlots"

	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO availability_slots (id, listing_id, start_at, end_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	created := 0
	for _, slot := range slots {
		res, err := stmt.ExecContext(ctx, uuid.NewString(), slot.ListingID, slot.StartAt, slot.EndAt)
		if err != nil {
			return 0, fmt.Errorf("%s: insert: %w", op, mapError(err))
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return created, nil
}

func (s *Storage) GetSlot(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	const op = "storage.postgres.GetSlot"

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	var slot models.AvailabilitySlot

	err := s.db.QueryRowContext(ctx,
		`SELECT id, listing_id, start_at, end_at, is_booked, created_at
		FROM availability_slots WHERE id=$1`, id).
		Scan(
			&slot.ID,
			&slot.ListingID,
			&slot.StartAt,
			&slot.EndAt,
			&slot.IsBooked,
			&slot.CreatedAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &slot, nil
}

func (s *Storage) ListSlots(ctx context.Context, listingID string, from *time.Time) ([]models.AvailabilitySlot, error) {
	const op = "storage.postgres.ListSlots"

	var fromArg any
	if from != nil {
		fromArg = *from
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, start_at, end_at, is_booked, created_at
		FROM availability_slots
		WHERE listing_id=$1 AND ($2::timestamptz IS NULL OR end_at > $2)
		ORDER BY start_at`, listingID, fromArg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	slots := make([]models.AvailabilitySlot, 0)
	for rows.Next() {
		var slot models.AvailabilitySlot
		if err := rows.Scan(
			&slot.ID,
			&slot.ListingID,
			&slot.StartAt,
			&slot.EndAt,
			&slot.IsBooked,
			&slot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func (s *Storage) DeleteSlot(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteSlot"

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE id=$1 AND is_booked=FALSE`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n > 0 {
		return nil
	}

	var isBooked bool
	err = s.db.QueryRowContext(ctx, `SELECT is_booked FROM availability_slots WHERE id=$1`, id).Scan(&isBooked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w", op, response.ErrSlotBooked)
}

// #### appointments ####

func (s *Storage) BookSlot(ctx context.Context, appt *models.Appointment) (string, error) {
	const op = "storage.postgres.BookSlot"

	if _, err := uuid.Parse(appt.SlotID); err != nil {
		return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var listingID string
	var startAt, endAt time.Time

	err = tx.QueryRowContext(ctx,
		`UPDATE availability_slots SET is_booked=TRUE
		WHERE id=$1 AND is_booked=FALSE
		RETURNING listing_id, start_at, end_at`, appt.SlotID).
		Scan(&listingID, &startAt, &endAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM availability_slots WHERE id=$1)`, appt.SlotID).
			Scan(&exists); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	id := uuid.NewString()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO appointments
		(id, slot_id, listing_id, tenant_id, start_at, end_at, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		appt.SlotID,
		listingID,
		appt.TenantID,
		startAt,
		endAt,
		string(models.AppointmentScheduled),
		appt.Message,
	)
	if err != nil {
		return "", fmt.Errorf("%s: insert appointment: %w", op, mapError(err))
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: commit: %w", op, err)
	}

	return id, nil
}

const appointmentColumns = `id, COALESCE(slot_id::text, ''), listing_id, tenant_id, status, message, start_at, end_at, created_at`

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	appt, err := scanAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

func (s *Storage) ListTenantAppointments(ctx context.Context, tenantID string) ([]models.Appointment, error) {
	const op = "storage.postgres.ListTenantAppointments"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id=$1
		ORDER BY start_at, created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	appts := make([]models.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		appts = append(appts, *appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return appts, nil
}

func (s *Storage) CancelAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.CancelAppointment"

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	appt, err := scanAppointment(tx.QueryRowContext(ctx,
		`UPDATE appointments SET status=$2
		WHERE id=$1 AND status=$3
		RETURNING `+appointmentColumns,
		id,
		string(models.AppointmentCancelled),
		string(models.AppointmentScheduled),
	))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM appointments WHERE id=$1)`, id).
			Scan(&exists); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: already cancelled: %w", op, response.ErrConflict)
	}

	if appt.SlotID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE availability_slots SET is_booked=FALSE WHERE id=$1`, appt.SlotID); err != nil {
			return nil, fmt.Errorf("%s: free slot: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return appt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appt models.Appointment
	var status string

	err := row.Scan(
		&appt.ID,
		&appt.SlotID,
		&appt.ListingID,
		&appt.TenantID,
		&status,
		&appt.Message,
		&appt.StartAt,
		&appt.EndAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	appt.Status = models.AppointmentStatus(status)

	return &appt, nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeExclusionViolation, codeUniqueViolation:
		return fmt.Errorf("%s: %w", pqErr.Constraint, response.ErrConflict)
	case codeCheckViolation:
		return fmt.Errorf("%s: %w", pqErr.Constraint, response.ErrBadRequest)
	default:
		return err
	}
}
