package models

import "time"

// ReportStatus tracks the monthly report lifecycle.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusPublished ReportStatus = "published"
)

// MonthlyReport is the persisted aggregate of comment sheets over a date
// range for one class. At most one row exists per (class, start, end);
// generation is get-or-create.
type MonthlyReport struct {
	ID           int64        `db:"id" json:"id"`
	ClassID      int64        `db:"class_id" json:"class_id"`
	Year         int          `db:"year" json:"year"`
	Month        int          `db:"month" json:"month"`
	StartDate    string       `db:"start_date" json:"start_date"`
	EndDate      string       `db:"end_date" json:"end_date"`
	MonthlyTheme string       `db:"monthly_theme" json:"monthly_theme"`
	Status       ReportStatus `db:"status" json:"status"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`

	Weeks []ReportWeek `db:"-" json:"weeks,omitempty"`
}

// ReportWeek is one positional entry within a monthly report, sourced from
// one comment sheet. WeekNumber is positional within the queried range, not
// an ISO calendar week.
type ReportWeek struct {
	ID              int64  `db:"id" json:"id"`
	MonthlyReportID int64  `db:"monthly_report_id" json:"monthly_report_id"`
	WeekNumber      int    `db:"week_number" json:"week_number"`
	LessonDate      string `db:"lesson_date" json:"lesson_date"`
	Target          string `db:"target" json:"target"`
	Vocabulary      string `db:"vocabulary" json:"vocabulary"`
	Phrase          string `db:"phrase" json:"phrase"`
	Others          string `db:"others" json:"others"`
	SheetID         int64  `db:"sheet_id" json:"sheet_id"`
}

// ReportRollup carries the whole-month deduplicated text blocks. Computed on
// demand, never stored per week.
type ReportRollup struct {
	TopicsCovered    []string `json:"topics_covered"`
	AllVocabulary    string   `json:"all_vocabulary"`
	CommonMistakes   string   `json:"common_mistakes"`
	OverallStrengths string   `json:"overall_strengths"`
}

// ReportPreview is the unpersisted aggregation returned by the preview
// operation.
type ReportPreview struct {
	ClassID    int64                      `json:"class_id"`
	StartDate  string                     `json:"start_date"`
	EndDate    string                     `json:"end_date"`
	Weeks      []ReportWeek               `json:"weeks"`
	Rollup     ReportRollup               `json:"rollup"`
	Attendance []StudentAttendanceSummary `json:"attendance"`
}
