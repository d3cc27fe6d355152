package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var ErrIllegalTransition = errors.New("illegal status transition")

// statusTransitions is the full set of legal moves. Completion requires
// passing through confirmed; completed and cancelled are terminal.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ValidateTransition checks one status move. Who is allowed to trigger a
// given move is a policy question for the caller, not encoded here.
func ValidateTransition(from, to AppointmentStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrIllegalTransition, from, to)
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// RoomName builds the identifier handed to the external video
// collaborator: {prefix}-{appointmentID}-{creationUnixMilli}. It is
// computed once at booking time and never regenerated.
func RoomName(prefix string, appointmentID uuid.UUID, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", prefix, appointmentID, createdAt.UnixMilli())
}

// Appointment binds one client to one doctor's slot. Slot times are
// copied at booking time so later slot changes cannot corrupt history.
// Appointments are never deleted; cancellation is a terminal status.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID        uuid.UUID         `bun:"id,pk,type:uuid"`
	ClientID  string            `bun:"client_id,notnull"`
	DoctorID  string            `bun:"doctor_id,notnull"`
	SlotID    uuid.UUID         `bun:"slot_id,notnull,type:uuid"`
	SlotStart time.Time         `bun:"slot_start,notnull"`
	SlotEnd   time.Time         `bun:"slot_end,notnull"`
	Status    AppointmentStatus `bun:"status,notnull"`
	RoomName  string            `bun:"room_name,notnull"`
	Notes     string            `bun:"notes"`
	CreatedAt time.Time         `bun:"created_at,notnull"`
	UpdatedAt time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
