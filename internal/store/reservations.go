package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediq/backend/internal/domain"
)

// SlotFilter narrows a doctor's slot listing. Zero time bounds mean
// unbounded on that side.
type SlotFilter struct {
	From     time.Time
	To       time.Time
	OpenOnly bool
}

type AppointmentFilter struct {
	DoctorID string
	ClientID string
	Status   domain.AppointmentStatus
	Limit    int
}

// ReservationStore is the durable storage contract for slots and
// appointments. InSlotTx is the transactional primitive booking relies
// on: fn runs with read/write access bound to one transaction scoped to
// slotID, and all writes commit together or not at all.
type ReservationStore interface {
	CreateSlot(ctx context.Context, slot domain.Slot) (domain.Slot, error)
	GetSlot(ctx context.Context, doctorID string, slotID uuid.UUID) (domain.Slot, error)
	DeleteOpenSlot(ctx context.Context, doctorID string, slotID uuid.UUID) error
	ListSlots(ctx context.Context, doctorID string, f SlotFilter) ([]domain.Slot, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus) (domain.Appointment, error)

	InSlotTx(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, tx ReservationTx) error) error
}

// ReservationTx is the view the booking coordinator gets inside
// InSlotTx. Two transactions on the same slot serialize; transactions on
// different slots never interfere.
type ReservationTx interface {
	GetSlot(ctx context.Context, doctorID string, slotID uuid.UUID) (domain.Slot, error)
	// MarkSlotBooked flips booked false->true; a slot already booked
	// surfaces as ErrConflict.
	MarkSlotBooked(ctx context.Context, doctorID string, slotID uuid.UUID) error
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}
