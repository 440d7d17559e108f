package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Medication struct {
	Name      string `json:"name" binding:"required"`
	Dosage    string `json:"dosage" binding:"required"`
	Frequency string `json:"frequency" binding:"required"`
	Duration  string `json:"duration" binding:"required"`
}

// Medications is stored as a JSONB column.
type Medications []Medication

func (m Medications) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Medications) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("cannot scan %T into Medications", src)
}

type Prescription struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	AppointmentID    int64       `db:"appointment_id" json:"appointmentId"`
	PatientID        int64       `db:"patient_id" json:"patientId"`
	PatientName      string      `db:"patient_name" json:"patientName"`
	DoctorID         int64       `db:"doctor_id" json:"doctorId"`
	DoctorName       string      `db:"doctor_name" json:"doctorName"`
	Medications      Medications `db:"medications" json:"medications"`
	Diagnosis        string      `db:"diagnosis" json:"diagnosis"`
	Notes            string      `db:"notes" json:"notes,omitempty"`
	NextVisit        *time.Time  `db:"next_visit" json:"nextVisit,omitempty"`
	PrescriptionDate time.Time   `db:"prescription_date" json:"prescriptionDate"`
}

type CreatePrescriptionRequest struct {
	AppointmentID int64        `json:"appointmentId" binding:"required,gt=0"`
	Medications   []Medication `json:"medications" binding:"required,min=1,dive"`
	Diagnosis     string       `json:"diagnosis" binding:"required,max=1000"`
	Notes         string       `json:"notes" binding:"max=2000"`
	NextVisit     *time.Time   `json:"nextVisit"`
}

type PrescriptionFilters struct {
	PatientID     int64
	DoctorID      int64
	AppointmentID int64
}
