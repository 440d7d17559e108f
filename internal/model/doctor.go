package model

type Doctor struct {
	Base
	ID              int64   `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Email           string  `db:"email" json:"email"`
	PasswordHash    string  `db:"password_hash" json:"-"`
	Specialty       string  `db:"specialty" json:"specialty"`
	Phone           string  `db:"phone" json:"phone,omitempty"`
	Qualification   string  `db:"qualification" json:"qualification,omitempty"`
	ExperienceYears int     `db:"experience_years" json:"experienceYears"`
	ConsultationFee float64 `db:"consultation_fee" json:"consultationFee"`
}

type CreateDoctorRequest struct {
	Name            string  `json:"name" binding:"required,max=100"`
	Email           string  `json:"email" binding:"required,email"`
	Password        string  `json:"password" binding:"required,min=8"`
	Specialty       string  `json:"specialty" binding:"required"`
	Phone           string  `json:"phone" binding:"omitempty,max=20"`
	Qualification   string  `json:"qualification"`
	ExperienceYears int     `json:"experienceYears" binding:"min=0,max=80"`
	ConsultationFee float64 `json:"consultationFee" binding:"min=0"`
}

// DoctorAvailability lists the free slots of one doctor on one date.
type DoctorAvailability struct {
	DoctorID        int64    `json:"doctorId"`
	DoctorName      string   `json:"doctorName"`
	Specialty       string   `json:"specialty"`
	Date            string   `json:"date"`
	AvailableSlots  []string `json:"availableSlots"`
	ConsultationFee float64  `json:"consultationFee"`
}
