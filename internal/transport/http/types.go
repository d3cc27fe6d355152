package http

import (
	"time"

	"github.com/google/uuid"

	"mediq/backend/internal/domain"
)

type createSlotRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type recurringSlotsRequest struct {
	StartDate       string `json:"start_date"` // 2006-01-02
	EndDate         string `json:"end_date"`
	DayStart        string `json:"day_start"` // 15:04
	DayEnd          string `json:"day_end"`
	Weekdays        []int  `json:"weekdays"` // Sunday = 0
	DurationMinutes int    `json:"duration_minutes"`
	Timezone        string `json:"timezone,omitempty"`
}

type batchResponse struct {
	Created   int `json:"created"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}

type slotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  string    `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Booked    bool      `json:"booked"`
}

type bookRequest struct {
	ClientID string `json:"client_id"`
	DoctorID string `json:"doctor_id"`
	SlotID   string `json:"slot_id"`
	Notes    string `json:"notes,omitempty"`
}

type appointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	ClientID  string    `json:"client_id"`
	DoctorID  string    `json:"doctor_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	SlotStart time.Time `json:"slot_start"`
	SlotEnd   time.Time `json:"slot_end"`
	Status    string    `json:"status"`
	RoomName  string    `json:"room_name"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type joinResponse struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	MsUntilStart int64  `json:"ms_until_start"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s domain.Slot) slotResponse {
	return slotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Booked:    s.Booked,
	}
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID,
		ClientID:  a.ClientID,
		DoctorID:  a.DoctorID,
		SlotID:    a.SlotID,
		SlotStart: a.SlotStart,
		SlotEnd:   a.SlotEnd,
		Status:    string(a.Status),
		RoomName:  a.RoomName,
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
