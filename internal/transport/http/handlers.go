// Package http exposes the reservation core over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mediq/backend/internal/domain"
	"mediq/backend/internal/service/reservations"
	"mediq/backend/internal/store"
)

type reservationService interface {
	GenerateRecurring(ctx context.Context, doctorID string, cfg domain.RecurringSlotConfig) (reservations.BatchResult, error)
	CreateSlot(ctx context.Context, doctorID string, in domain.SlotInput) (domain.Slot, error)
	DeleteSlot(ctx context.Context, doctorID string, slotID uuid.UUID) error
	ListSlots(ctx context.Context, doctorID string, f store.SlotFilter) ([]domain.Slot, error)
	Book(ctx context.Context, in reservations.BookInput) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error)
	CanJoin(ctx context.Context, id uuid.UUID, participantID string, now time.Time) (domain.JoinDecision, error)
}

type Handler struct {
	svc reservationService
	log *slog.Logger
}

func NewHandler(svc reservationService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		svc: svc,
		log: log.With(slog.String("component", "http.reservations")),
	}
}

func (h *Handler) createSlot(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	var req createSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	slot, err := h.svc.CreateSlot(r.Context(), doctorID, domain.SlotInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSlotResponse(slot))
}

func (h *Handler) generateRecurringSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	var req recurringSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}

	res, err := h.svc.GenerateRecurring(r.Context(), doctorID, cfg)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Created:   res.Created,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Rejected:  res.Rejected,
	})
}

func (req recurringSlotsRequest) toConfig() (domain.RecurringSlotConfig, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return domain.RecurringSlotConfig{}, errors.New("start_date must be YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return domain.RecurringSlotConfig{}, errors.New("end_date must be YYYY-MM-DD")
	}
	dayStart, err := domain.ParseClockTime(req.DayStart)
	if err != nil {
		return domain.RecurringSlotConfig{}, errors.New("day_start must be HH:MM")
	}
	dayEnd, err := domain.ParseClockTime(req.DayEnd)
	if err != nil {
		return domain.RecurringSlotConfig{}, errors.New("day_end must be HH:MM")
	}

	var loc *time.Location
	if req.Timezone != "" {
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return domain.RecurringSlotConfig{}, errors.New("invalid timezone")
		}
	}

	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, wd := range req.Weekdays {
		weekdays = append(weekdays, time.Weekday(wd))
	}

	return domain.RecurringSlotConfig{
		StartDate:       startDate,
		EndDate:         endDate,
		DayStart:        dayStart,
		DayEnd:          dayEnd,
		Weekdays:        weekdays,
		DurationMinutes: req.DurationMinutes,
		Location:        loc,
	}, nil
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	var f store.SlotFilter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}
		f.To = t
	}
	f.OpenOnly = q.Get("open") == "true"

	slots, err := h.svc.ListSlots(r.Context(), doctorID, f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteSlot(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot id must be a valid UUID")
		return
	}

	if err := h.svc.DeleteSlot(r.Context(), doctorID, slotID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
		return
	}

	appt, err := h.svc.Book(r.Context(), reservations.BookInput{
		ClientID:       req.ClientID,
		DoctorID:       req.DoctorID,
		SlotID:         slotID,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AppointmentFilter{
		DoctorID: q.Get("doctor_id"),
		ClientID: q.Get("client_id"),
		Status:   domain.AppointmentStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	appts, err := h.svc.ListAppointments(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), id, domain.AppointmentStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) canJoin(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	participantID := r.URL.Query().Get("participant_id")

	decision, err := h.svc.CanJoin(r.Context(), id, participantID, time.Now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{
		Allowed:      decision.Allowed,
		Reason:       decision.Reason,
		MsUntilStart: decision.UntilStart.Milliseconds(),
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *reservations.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_request", vErr.Error())
	case errors.Is(err, domain.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, reservations.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, reservations.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, reservations.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, reservations.ErrSlotInPast):
		writeError(w, http.StatusConflict, "slot_in_past", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_status_transition", err.Error())
	case errors.Is(err, reservations.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not_participant", err.Error())
	case errors.Is(err, reservations.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "not_confirmed", err.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", "this idempotency key was already used for a different booking")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "concurrent update, safe to retry")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable, retry with backoff")
	default:
		h.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestID(r.Context())),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, errorResponse{Error: code, Details: details})
}
