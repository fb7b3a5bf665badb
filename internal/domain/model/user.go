// Package model contains domain models passed between layers.
package model

import "time"

// Role is the coarse permission class carried by a user and their bearer token.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleOrganizer
}

// User is a campus account. Department and Year only matter for students.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null;size:150" json:"username"`
	Email      string    `gorm:"size:254" json:"email"`
	Role       Role      `gorm:"size:10;not null;default:student" json:"role"`
	StudentID  string    `gorm:"size:20" json:"student_id,omitempty"`
	Department string    `gorm:"size:100" json:"department,omitempty"`
	Year       string    `gorm:"size:20" json:"year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
