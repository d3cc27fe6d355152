package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"mediq/backend/internal/domain"
	"mediq/backend/internal/store"
)

type ReservationRepo struct {
	db *bun.DB
}

func NewReservationRepo(db *bun.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

type reservationTx struct {
	tx bun.Tx
}

func (r *ReservationRepo) CreateSlot(ctx context.Context, slot domain.Slot) (domain.Slot, error) {
	m := slot
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Slot{}, mapPgError(err)
	}
	return m, nil
}

func (r *ReservationRepo) GetSlot(ctx context.Context, doctorID string, slotID uuid.UUID) (domain.Slot, error) {
	var s domain.Slot
	err := r.db.NewSelect().
		Model(&s).
		Where("doctor_id = ?", doctorID).
		Where("id = ?", slotID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Slot{}, store.ErrNotFound
		}
		return domain.Slot{}, mapPgError(err)
	}
	return s, nil
}

// DeleteOpenSlot removes a slot only while it is unbooked. The check and
// the delete share the slot's transaction scope so a concurrent booking
// cannot slip between them.
func (r *ReservationRepo) DeleteOpenSlot(ctx context.Context, doctorID string, slotID uuid.UUID) error {
	return r.InSlotTx(ctx, slotID, func(ctx context.Context, tx store.ReservationTx) error {
		slot, err := tx.GetSlot(ctx, doctorID, slotID)
		if err != nil {
			return err
		}
		if slot.Booked {
			return store.ErrConflict
		}

		rtx := tx.(reservationTx)
		res, err := rtx.tx.NewDelete().
			Model((*domain.Slot)(nil)).
			Where("doctor_id = ?", doctorID).
			Where("id = ?", slotID).
			Where("booked = FALSE").
			Exec(ctx)
		if err != nil {
			return mapPgError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrConflict
		}
		return nil
	})
}

func (r *ReservationRepo) ListSlots(ctx context.Context, doctorID string, f store.SlotFilter) ([]domain.Slot, error) {
	var rows []domain.Slot
	q := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID)
	if !f.From.IsZero() {
		q = q.Where("start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", f.To)
	}
	if f.OpenOnly {
		q = q.Where("booked = FALSE")
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return rows, nil
}

func (r *ReservationRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, mapPgError(err)
	}
	return a, nil
}

func (r *ReservationRepo) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.OrderExpr("slot_start ASC").Scan(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return rows, nil
}

// UpdateAppointmentStatus is a compare-and-swap: the update applies only
// while the row still holds the expected from status. A lost swap
// surfaces as ErrConflict so the caller can re-read and decide.
func (r *ReservationRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus) (domain.Appointment, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapPgError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		if _, err := r.GetAppointment(ctx, id); errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, store.ErrConflict
	}
	return r.GetAppointment(ctx, id)
}

// InSlotTx runs fn inside one database transaction holding an advisory
// lock derived from the slot id. Concurrent bookings of the same slot
// serialize here; different slots proceed independently.
func (r *ReservationRepo) InSlotTx(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, tx store.ReservationTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, slotID); err != nil {
			return err
		}
		return fn(ctx, reservationTx{tx: tx})
	})
	return mapPgError(err)
}

func lockSlot(ctx context.Context, tx bun.Tx, slotID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", slotID.String()).Exec(ctx)
	return err
}

func (r reservationTx) GetSlot(ctx context.Context, doctorID string, slotID uuid.UUID) (domain.Slot, error) {
	var s domain.Slot
	err := r.tx.NewSelect().
		Model(&s).
		Where("doctor_id = ?", doctorID).
		Where("id = ?", slotID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Slot{}, store.ErrNotFound
		}
		return domain.Slot{}, mapPgError(err)
	}
	return s, nil
}

func (r reservationTx) MarkSlotBooked(ctx context.Context, doctorID string, slotID uuid.UUID) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.Slot)(nil)).
		Set("booked = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", slotID).
		Where("doctor_id = ?", doctorID).
		Where("booked = FALSE").
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r reservationTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "appointments_slot_id_key" {
				// Another appointment already claimed this slot.
				return domain.Appointment{}, store.ErrConflict
			}

			// Duplicate id: an idempotency-keyed replay. Return the
			// committed row if it is the same request, otherwise the
			// key was reused for something else.
			existing, selectErr := r.GetAppointment(ctx, m.ID)
			if selectErr != nil {
				return domain.Appointment{}, err
			}
			if appointmentsMatch(existing, appt) {
				return existing, nil
			}
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return domain.Appointment{}, mapPgError(err)
	}
	return m, nil
}

func (r reservationTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, mapPgError(err)
	}
	return a, nil
}

func appointmentsMatch(existing, attempted domain.Appointment) bool {
	return existing.ClientID == attempted.ClientID &&
		existing.DoctorID == attempted.DoctorID &&
		existing.SlotID == attempted.SlotID
}

// mapPgError translates driver failures into the store's retryable
// sentinels: serialization/deadlock SQLSTATEs become ErrConflict,
// connection (class 08) and operator-intervention (class 57) failures
// become ErrUnavailable. Anything else passes through.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return store.ErrConflict
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57"):
			return store.ErrUnavailable
		}
	}
	return err
}
