package model

import "time"

type Patient struct {
	Base
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Address      string     `db:"address" json:"address,omitempty"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
}

type UpdatePatientRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=100"`
	Phone       *string    `json:"phone" binding:"omitempty,max=20"`
	Address     *string    `json:"address" binding:"omitempty,max=255"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}
