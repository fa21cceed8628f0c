package models

import "time"

// AttendanceStatus represents the status glyph for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent  AttendanceStatus = "O"
	AttendanceStatusAbsent   AttendanceStatus = "X"
	AttendanceStatusLate     AttendanceStatus = "/"
	AttendanceStatusUnmarked AttendanceStatus = ""
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusUnmarked:
		return true
	default:
		return false
	}
}

// FormatStatus collapses arbitrary stored values into one of the four
// supported glyphs. The grid builder passes stored values through untouched;
// renderers go through this helper.
func FormatStatus(raw string) AttendanceStatus {
	s := AttendanceStatus(raw)
	if s.Valid() {
		return s
	}
	return AttendanceStatusUnmarked
}

// AttendanceRecord is one student's mark for one class day. The date column
// is carried as text because legacy rows hold mixed formats; it is
// normalised to ISO before any keying or comparison.
type AttendanceRecord struct {
	ID         int64            `db:"id" json:"id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	ClassID    int64            `db:"class_id" json:"class_id"`
	Date       string           `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	LessonTime *string          `db:"lesson_time" json:"lesson_time,omitempty"`
	TeacherID  *string          `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes attendance listing queries. Date bounds are
// canonical ISO stamps.
type AttendanceFilter struct {
	ClassID   int64
	StudentID int64
	Status    *AttendanceStatus
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
}

// AttendanceMatrix is the dense date × student grid. Dates is the complete
// contiguous axis when both bounds were supplied, otherwise the distinct
// dates present in the underlying rows. Marks holds entries only for
// (student, date) pairs with an actual record; a missing key means
// "not marked", which is distinct from an explicit absence.
type AttendanceMatrix struct {
	Class     *Class                      `json:"class"`
	Students  []Student                   `json:"students"`
	Dates     []string                    `json:"dates"`
	Marks     map[string]AttendanceStatus `json:"attendance_map"`
	StartDate string                      `json:"start_date,omitempty"`
	EndDate   string                      `json:"end_date,omitempty"`
}

// StudentAttendanceSummary aggregates one student's counts within a range.
// Rate is a rounded percentage; zero rows in range yields rate 0, which is
// not the same thing as perfect attendance.
type StudentAttendanceSummary struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	Present     int    `json:"present"`
	Absent      int    `json:"absent"`
	Late        int    `json:"late"`
	Total       int    `json:"total"`
	Rate        int    `json:"rate"`
}
