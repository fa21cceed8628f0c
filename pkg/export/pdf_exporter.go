package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Layout constants for the A4 landscape attendance grid.
const (
	gridContentWidth = 277.0
	gridNameColWidth = 60.0
	gridMinDateWidth = 9.0
)

// GridStudent is one row of the attendance grid.
type GridStudent struct {
	ID   int64
	Name string
	Type string
}

// GridInput carries a fully built attendance matrix for rendering.
type GridInput struct {
	Title    string
	Subtitle string
	Students []GridStudent
	Dates    []string
	// Marks is keyed "<studentID>-<date>"; missing keys render blank.
	Marks map[string]string
}

// ReportWeekRow is one positional week entry of a monthly report.
type ReportWeekRow struct {
	WeekNumber int
	LessonDate string
	Target     string
	Vocabulary string
	Phrase     string
	Others     string
}

// ReportStudentRow summarises one student's attendance for the month.
type ReportStudentRow struct {
	Name    string
	Present int
	Absent  int
	Late    int
	Rate    int
}

// ReportInput carries an aggregated monthly report for rendering.
type ReportInput struct {
	ClassName        string
	Year             int
	Month            int
	Theme            string
	Weeks            []ReportWeekRow
	TopicsCovered    []string
	AllVocabulary    string
	CommonMistakes   string
	OverallStrengths string
	Students         []ReportStudentRow
}

// PDFExporter renders attendance grids and monthly reports.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// GridColumns returns how many date columns fit beside the name column on one
// page. Chunk boundaries are capacity driven only; a chunk may span months.
func GridColumns(contentWidth, nameWidth, minDateWidth float64) int {
	if minDateWidth <= 0 {
		return 1
	}
	n := int((contentWidth - nameWidth) / minDateWidth)
	if n < 1 {
		return 1
	}
	return n
}

// ChunkDates splits the date axis into page-sized runs of at most size dates.
func ChunkDates(dates []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(dates); start += size {
		end := start + size
		if end > len(dates) {
			end = len(dates)
		}
		chunks = append(chunks, dates[start:end])
	}
	return chunks
}

// RenderAttendanceGrid draws the date × student grid, one page per date
// chunk, repeating the student name column on every page.
func (e *PDFExporter) RenderAttendanceGrid(in GridInput) ([]byte, error) {
	if len(in.Students) == 0 {
		return nil, fmt.Errorf("grid requires at least one student")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)

	chunks := ChunkDates(in.Dates, GridColumns(gridContentWidth, gridNameColWidth, gridMinDateWidth))
	if len(chunks) == 0 {
		chunks = [][]string{nil}
	}

	for _, chunk := range chunks {
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, in.Title, "", 1, "C", false, 0, "")
		if in.Subtitle != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, in.Subtitle, "", 1, "C", false, 0, "")
		}
		pdf.Ln(3)

		dateWidth := gridMinDateWidth
		if len(chunk) > 0 {
			if w := (gridContentWidth - gridNameColWidth) / float64(len(chunk)); w > dateWidth {
				dateWidth = w
			}
		}

		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(gridNameColWidth, 8, "Student", "1", 0, "L", false, 0, "")
		for _, date := range chunk {
			pdf.CellFormat(dateWidth, 8, shortDate(date), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, student := range in.Students {
			pdf.CellFormat(gridNameColWidth, 7, gridRowLabel(student), "1", 0, "L", false, 0, "")
			for _, date := range chunk {
				mark := in.Marks[fmt.Sprintf("%d-%s", student.ID, date)]
				pdf.CellFormat(dateWidth, 7, mark, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render attendance grid: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderMonthlyReport draws the aggregated monthly report document.
func (e *PDFExporter) RenderMonthlyReport(in ReportInput) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Monthly Report - %s (%04d-%02d)", in.ClassName, in.Year, in.Month), "", 1, "C", false, 0, "")
	if in.Theme != "" {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("Theme: %s", in.Theme), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	weekCols := []struct {
		label string
		width float64
	}{
		{"Wk", 10},
		{"Date", 24},
		{"Target", 42},
		{"Vocabulary", 42},
		{"Phrase", 36},
		{"Others", 36},
	}
	for _, col := range weekCols {
		pdf.CellFormat(col.width, 7, col.label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, week := range in.Weeks {
		values := []string{
			fmt.Sprintf("%d", week.WeekNumber),
			week.LessonDate,
			week.Target,
			week.Vocabulary,
			week.Phrase,
			week.Others,
		}
		for i, col := range weekCols {
			pdf.CellFormat(col.width, 6, clip(values[i], 40), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	writeSection := func(label, body string) {
		if body == "" {
			return
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, body, "", "L", false)
		pdf.Ln(2)
	}
	writeSection("Topics Covered", strings.Join(in.TopicsCovered, "\n"))
	writeSection("Vocabulary", in.AllVocabulary)
	writeSection("Common Mistakes", in.CommonMistakes)
	writeSection("Strengths", in.OverallStrengths)

	if len(in.Students) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Attendance", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		for _, h := range []struct {
			label string
			width float64
		}{{"Student", 70}, {"Present", 25}, {"Absent", 25}, {"Late", 25}, {"Rate (%)", 25}} {
			pdf.CellFormat(h.width, 7, h.label, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, s := range in.Students {
			pdf.CellFormat(70, 6, clip(s.Name, 45), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", s.Present), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", s.Absent), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", s.Late), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", s.Rate), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render monthly report: %w", err)
	}
	return buf.Bytes(), nil
}

// shortDate renders MM-DD column headers; the full range is in the subtitle.
func shortDate(iso string) string {
	if len(iso) == 10 {
		return iso[5:]
	}
	return iso
}

func gridRowLabel(s GridStudent) string {
	if s.Type != "" && s.Type != "regular" {
		return fmt.Sprintf("%s (%s)", s.Name, s.Type)
	}
	return s.Name
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "~"
}
