package model

import "time"

type User struct {
	ID               string     `db:"id" json:"id"`
	GoogleID         string     `db:"google_id" json:"-"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergencyContact,omitempty"`
	Avatar           *string    `db:"avatar" json:"avatar,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	GoogleID string
	Name     string
	Email    string
	Avatar   *string
}

type UpdateUserParams struct {
	Name        *string
	Avatar      *string
	DateOfBirth *time.Time
}
