package models

import "time"

// CommentSheet is one teacher's notes for one class on one lesson date.
// At most one sheet exists per (class, date); writes upsert.
type CommentSheet struct {
	ID          int64     `db:"id" json:"id"`
	ClassID     int64     `db:"class_id" json:"class_id"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Date        string    `db:"date" json:"date"`
	TargetTopic string    `db:"target_topic" json:"target_topic"`
	Vocabulary  string    `db:"vocabulary" json:"vocabulary"`
	Mistakes    string    `db:"mistakes" json:"mistakes"`
	Strengths   string    `db:"strengths" json:"strengths"`
	Comments    string    `db:"comments" json:"comments"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CommentSheetFilter scopes sheet listing queries.
type CommentSheetFilter struct {
	ClassID  int64
	DateFrom string
	DateTo   string
	Page     int
	PageSize int
}
