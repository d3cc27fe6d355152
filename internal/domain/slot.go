package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Slot is a doctor-owned bookable time interval. The booked flag flips
// exactly once, false to true, and never reverses through this service;
// a booked slot stays around as a historical artifact even after its
// appointment is cancelled.
type Slot struct {
	bun.BaseModel `bun:"table:slots"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	DoctorID  string    `bun:"doctor_id,notnull"`
	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	Booked    bool      `bun:"booked,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (s *Slot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// SlotInput is a single candidate interval, either produced by the
// recurring generator or supplied directly by a doctor.
type SlotInput struct {
	StartTime time.Time
	EndTime   time.Time
}
