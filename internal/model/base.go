package model

import "time"

// Base contains the timestamps shared by the persisted people records
type Base struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DateLayout is the wire format for calendar dates in query strings.
const DateLayout = "2006-01-02"
