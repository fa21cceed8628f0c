package models

import "time"

// StudentType distinguishes permanent roster members from trial and makeup
// visitors. Grids and report sections group regular students first.
type StudentType string

const (
	StudentTypeRegular StudentType = "regular"
	StudentTypeTrial   StudentType = "trial"
	StudentTypeMakeup  StudentType = "makeup"
)

// Student represents a learner registered in a class.
type Student struct {
	ID         int64       `db:"id" json:"id"`
	ClassID    int64       `db:"class_id" json:"class_id"`
	FullName   string      `db:"full_name" json:"full_name"`
	Type       StudentType `db:"student_type" json:"student_type"`
	Active     bool        `db:"active" json:"active"`
	EnrolledOn *string     `db:"enrolled_on" json:"enrolled_on,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID   int64
	Search    string
	Type      *StudentType
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
