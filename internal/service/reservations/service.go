// Package reservations is the reservation core: it turns a doctor's
// declared availability into bookable slots and converts a client's
// booking request into exactly one durable appointment, with the atomic
// reservation bound inside a single store transaction.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediq/backend/internal/domain"
	"mediq/backend/internal/metrics"
	"mediq/backend/internal/store"
)

const (
	maxNotesLen          = 2000
	maxIdempotencyKeyLen = 256
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotAlreadyBooked   = errors.New("slot already booked")
	ErrSlotInPast          = errors.New("slot start is not in the future")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotParticipant      = errors.New("not a participant of this appointment")
	ErrNotConfirmed        = errors.New("appointment is not confirmed")
)

// SlotCache is an optional read-side cache for a doctor's open-slot
// listing. Misses and failures fall through to the store.
type SlotCache interface {
	GetOpenSlots(ctx context.Context, doctorID string) ([]domain.Slot, bool)
	SetOpenSlots(ctx context.Context, doctorID string, slots []domain.Slot)
	Invalidate(ctx context.Context, doctorID string)
}

type Config struct {
	RoomPrefix string
	JoinWindow time.Duration
	Cache      SlotCache
	Metrics    *metrics.Metrics
	Log        *slog.Logger

	// Clock and id generator, injectable for deterministic tests.
	Now   func() time.Time
	NewID func() (uuid.UUID, error)
}

type Service struct {
	store      store.ReservationStore
	cache      SlotCache
	metrics    *metrics.Metrics
	log        *slog.Logger
	roomPrefix string
	join       domain.JoinPolicy
	now        func() time.Time
	newID      func() (uuid.UUID, error)
}

func NewService(st store.ReservationStore, cfg Config) *Service {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	prefix := strings.TrimSpace(cfg.RoomPrefix)
	if prefix == "" {
		prefix = "mediq"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewV7
	}
	return &Service{
		store:      st,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		log:        log.With(slog.String("component", "service.reservations")),
		roomPrefix: prefix,
		join:       domain.JoinPolicy{Window: cfg.JoinWindow},
		now:        now,
		newID:      newID,
	}
}

// BatchResult reports the outcome of a recurring generation run.
// Created counts candidates the generator emitted, Rejected counts
// candidates dropped pre-persistence for being in the past, and
// Succeeded/Failed count per-item persistence outcomes.
type BatchResult struct {
	Created   int
	Succeeded int
	Failed    int
	Rejected  int
}

// GenerateRecurring expands cfg into slots and persists each candidate
// independently. A storage failure on one candidate never fails the
// batch.
func (s *Service) GenerateRecurring(ctx context.Context, doctorID string, cfg domain.RecurringSlotConfig) (BatchResult, error) {
	if doctorID == "" {
		return BatchResult{}, validationError("doctor_id is required")
	}

	candidates, rejected, err := domain.GenerateSlots(cfg, s.now().UTC())
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Created: len(candidates), Rejected: rejected}
	for _, c := range candidates {
		_, err := s.store.CreateSlot(ctx, domain.Slot{
			DoctorID:  doctorID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
		})
		if err != nil {
			res.Failed++
			s.log.Warn("slot persistence failed",
				slog.String("doctor_id", doctorID),
				slog.Time("start_time", c.StartTime),
				slog.Any("err", err),
			)
			continue
		}
		res.Succeeded++
	}

	if s.metrics != nil {
		s.metrics.SlotsGenerated.Add(float64(res.Created))
		s.metrics.SlotsPersisted.Add(float64(res.Succeeded))
		s.metrics.SlotsRejected.Add(float64(res.Rejected))
	}
	if res.Succeeded > 0 {
		s.invalidateSlots(ctx, doctorID)
	}

	return res, nil
}

func (s *Service) CreateSlot(ctx context.Context, doctorID string, in domain.SlotInput) (domain.Slot, error) {
	if doctorID == "" {
		return domain.Slot{}, validationError("doctor_id is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Slot{}, validationError("end_time must be after start_time")
	}
	if !start.After(s.now().UTC()) {
		return domain.Slot{}, validationError("start_time must be in the future")
	}

	slot, err := s.store.CreateSlot(ctx, domain.Slot{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return domain.Slot{}, err
	}

	if s.metrics != nil {
		s.metrics.SlotsPersisted.Inc()
	}
	s.invalidateSlots(ctx, doctorID)
	return slot, nil
}

// DeleteSlot removes an unbooked slot. Booked slots are historical
// artifacts and stay.
func (s *Service) DeleteSlot(ctx context.Context, doctorID string, slotID uuid.UUID) error {
	if doctorID == "" {
		return validationError("doctor_id is required")
	}
	if slotID == uuid.Nil {
		return validationError("slot_id is required")
	}

	err := s.store.DeleteOpenSlot(ctx, doctorID, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSlotNotFound
		}
		if errors.Is(err, store.ErrConflict) {
			return ErrSlotAlreadyBooked
		}
		return err
	}

	s.invalidateSlots(ctx, doctorID)
	return nil
}

func (s *Service) ListSlots(ctx context.Context, doctorID string, f store.SlotFilter) ([]domain.Slot, error) {
	if doctorID == "" {
		return nil, validationError("doctor_id is required")
	}

	cacheable := s.cache != nil && f.OpenOnly && f.From.IsZero() && f.To.IsZero()
	if cacheable {
		if slots, ok := s.cache.GetOpenSlots(ctx, doctorID); ok {
			return slots, nil
		}
	}

	slots, err := s.store.ListSlots(ctx, doctorID, f)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.SetOpenSlots(ctx, doctorID, slots)
	}
	return slots, nil
}

type BookInput struct {
	ClientID       string
	DoctorID       string
	SlotID         uuid.UUID
	Notes          string
	IdempotencyKey string
}

// Book executes the atomic reservation: inside one slot-scoped store
// transaction it reads the slot, validates it, creates the pending
// appointment with the room name minted in-place, and flips the booked
// flag. When two callers race on the same slot exactly one commits; the
// loser sees ErrSlotAlreadyBooked. The coordinator never retries.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.ClientID == "" {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if in.DoctorID == "" {
		return domain.Appointment{}, validationError("doctor_id is required")
	}
	if in.SlotID == uuid.Nil {
		return domain.Appointment{}, validationError("slot_id is required")
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLen {
		return domain.Appointment{}, validationError("notes too long")
	}

	var apptID uuid.UUID
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		apptID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("mediq:book:"+in.ClientID+":"+key))
	}

	started := s.now()

	var out domain.Appointment
	err := s.store.InSlotTx(ctx, in.SlotID, func(ctx context.Context, tx store.ReservationTx) error {
		if apptID != uuid.Nil {
			existing, err := tx.GetAppointment(ctx, apptID)
			if err == nil {
				if existing.ClientID != in.ClientID || existing.DoctorID != in.DoctorID || existing.SlotID != in.SlotID {
					return store.ErrIdempotencyConflict
				}
				out = existing
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
		}

		slot, err := tx.GetSlot(ctx, in.DoctorID, in.SlotID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSlotNotFound
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if slot.Booked {
			return ErrSlotAlreadyBooked
		}

		now := s.now().UTC()
		if !slot.StartTime.After(now) {
			return ErrSlotInPast
		}

		id := apptID
		if id == uuid.Nil {
			id, err = s.newID()
			if err != nil {
				return err
			}
		}

		appt := domain.Appointment{
			ID:        id,
			ClientID:  in.ClientID,
			DoctorID:  slot.DoctorID,
			SlotID:    slot.ID,
			SlotStart: slot.StartTime,
			SlotEnd:   slot.EndTime,
			Status:    domain.StatusPending,
			RoomName:  domain.RoomName(s.roomPrefix, id, now),
			Notes:     notes,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := tx.MarkSlotBooked(ctx, slot.DoctorID, slot.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("mark slot booked: %w", err)
		}

		out = created
		return nil
	})

	s.observeBooking(started, err)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.invalidateSlots(ctx, in.DoctorID)
	return out, nil
}

// UpdateStatus applies one legal state-machine move. Authorization of
// who may trigger which move belongs to the transport/policy layer.
func (s *Service) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, to domain.AppointmentStatus) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !to.Valid() {
		return domain.Appointment{}, validationError("unknown status")
	}

	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}

	if err := domain.ValidateTransition(appt.Status, to); err != nil {
		return domain.Appointment{}, err
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, appointmentID, appt.Status, to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationError("unknown status")
	}
	return s.store.ListAppointments(ctx, f)
}

// CanJoin gates access to the appointment's video room. The requester
// must be a party to the appointment and the appointment must be
// confirmed; the window decision itself is pure.
func (s *Service) CanJoin(ctx context.Context, appointmentID uuid.UUID, participantID string, now time.Time) (domain.JoinDecision, error) {
	if appointmentID == uuid.Nil {
		return domain.JoinDecision{}, validationError("appointment_id is required")
	}
	if participantID == "" {
		return domain.JoinDecision{}, validationError("participant_id is required")
	}

	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.JoinDecision{}, ErrAppointmentNotFound
		}
		return domain.JoinDecision{}, err
	}

	if participantID != appt.ClientID && participantID != appt.DoctorID {
		return domain.JoinDecision{}, ErrNotParticipant
	}
	if appt.Status != domain.StatusConfirmed {
		return domain.JoinDecision{}, ErrNotConfirmed
	}

	if now.IsZero() {
		now = s.now()
	}
	decision := s.join.Decide(now.UTC(), appt.SlotStart)

	if s.metrics != nil {
		result := "denied"
		if decision.Allowed {
			result = "allowed"
		}
		s.metrics.JoinChecksTotal.WithLabelValues(result).Inc()
	}
	return decision, nil
}

func (s *Service) invalidateSlots(ctx context.Context, doctorID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, doctorID)
	}
}

func (s *Service) observeBooking(started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.BookingDuration.Observe(s.now().Sub(started).Seconds())

	outcome := metrics.OutcomeBooked
	switch {
	case err == nil:
	case errors.Is(err, ErrSlotNotFound):
		outcome = metrics.OutcomeNotFound
	case errors.Is(err, ErrSlotAlreadyBooked):
		outcome = metrics.OutcomeAlreadyBooked
	case errors.Is(err, ErrSlotInPast):
		outcome = metrics.OutcomeInPast
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
}
