package models

import "time"

// DashboardStats is the cached admin dashboard snapshot.
type DashboardStats struct {
	ActiveClasses   int       `json:"active_classes"`
	ActiveStudents  int       `json:"active_students"`
	PresentToday    int       `json:"present_today"`
	AbsentToday     int       `json:"absent_today"`
	SheetsThisMonth int       `json:"sheets_this_month"`
	GeneratedAt     time.Time `json:"generated_at"`
}
