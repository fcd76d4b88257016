package feedback

import (
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"reviewflow/internal/domain/cycles"
)

type ReportData struct {
	Employee Person
	Cycle    cycles.Cycle
	Forms    []Form
}

func (d ReportData) RatingCounts() map[Rating]int {
	counts := make(map[Rating]int, len(Ratings))
	for _, f := range d.Forms {
		counts[f.OverallRating]++
	}
	return counts
}

// Report writes a PDF summary of the submitted feedback about employeeID in
// the given cycle, or the active cycle when cycleID is empty.
func (s *Service) Report(ctx context.Context, employeeID, cycleID string, w io.Writer) error {
	employee, err := s.store.Person(ctx, employeeID)
	if err != nil {
		return err
	}
	var cycle cycles.Cycle
	if cycleID == "" {
		active, err := s.cycles.Active(ctx)
		if err != nil {
			return err
		}
		if active == nil {
			return cycles.ErrNoActiveCycle
		}
		cycle = *active
	} else if cycle, err = s.cycles.Get(ctx, cycleID); err != nil {
		return err
	}

	forms, err := s.store.ListSubmittedForEmployee(ctx, employee.ID, cycle.ID)
	if err != nil {
		return err
	}
	return RenderReport(w, ReportData{Employee: employee, Cycle: cycle, Forms: forms})
}

func RenderReport(w io.Writer, data ReportData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Feedback report", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Feedback report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", data.Employee.Name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Email: %s", data.Employee.Email))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Cycle: %s (%s to %s)", data.Cycle.Name,
		data.Cycle.StartDate.Format("2006-01-02"), data.Cycle.EndDate.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Ratings (%d submitted)", len(data.Forms)))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	counts := data.RatingCounts()
	for _, rating := range Ratings {
		pdf.Cell(0, 7, fmt.Sprintf("%s: %d", rating.Label(), counts[rating]))
		pdf.Ln(6)
	}

	for i, form := range data.Forms {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, fmt.Sprintf("Feedback %d: %s", i+1, form.OverallRating.Label()))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 6, "Strengths")
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, form.Strengths, "", "L", false)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 6, "Improvements")
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, form.Improvements, "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render feedback report: %w", err)
	}
	return pdf.Output(w)
}
