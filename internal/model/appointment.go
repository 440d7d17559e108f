package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow    AppointmentStatus = "NO_SHOW"
)

const (
	// DefaultDurationMinutes is used when a booking does not specify one.
	DefaultDurationMinutes = 30
	// CancellationNotice is how far ahead of the appointment a cancellation must happen.
	CancellationNotice = 24 * time.Hour
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	return s != AppointmentStatusScheduled
}

// CanTransition reports whether an appointment may move from s to next.
// SCHEDULED is the only state with outgoing transitions.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	return s == AppointmentStatusScheduled && next.Valid() && next.Terminal()
}

type Appointment struct {
	Base
	ID              int64             `db:"id" json:"id"`
	DoctorID        int64             `db:"doctor_id" json:"doctorId"`
	PatientID       int64             `db:"patient_id" json:"patientId"`
	AppointmentTime time.Time         `db:"appointment_time" json:"appointmentTime"`
	DurationMinutes int               `db:"duration_minutes" json:"durationMinutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          string            `db:"reason" json:"reason,omitempty"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
}

// IsUpcoming reports whether the appointment is still scheduled and in the future.
func (a *Appointment) IsUpcoming(now time.Time) bool {
	return a.Status == AppointmentStatusScheduled && a.AppointmentTime.After(now)
}

// CanBeCancelled requires a scheduled future appointment with more than the
// cancellation notice left.
func (a *Appointment) CanBeCancelled(now time.Time) bool {
	return a.IsUpcoming(now) && a.AppointmentTime.Add(-CancellationNotice).After(now)
}

// AppointmentDetail is an appointment joined with the names of both parties.
type AppointmentDetail struct {
	Appointment
	DoctorName      string `db:"doctor_name" json:"doctorName"`
	DoctorSpecialty string `db:"doctor_specialty" json:"doctorSpecialty"`
	DoctorEmail     string `db:"doctor_email" json:"-"`
	PatientName     string `db:"patient_name" json:"patientName"`
	PatientEmail    string `db:"patient_email" json:"-"`
}

type BookAppointmentRequest struct {
	DoctorID        int64     `json:"doctorId" binding:"required,gt=0"`
	PatientID       int64     `json:"patientId" binding:"omitempty,gt=0"`
	AppointmentTime time.Time `json:"appointmentTime" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"omitempty,min=15,max=240"`
	Reason          string    `json:"reason" binding:"max=500"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointment_status"`
}

type AppointmentFilters struct {
	DoctorID  int64
	PatientID int64
	Status    AppointmentStatus
	From      time.Time
	To        time.Time
}
