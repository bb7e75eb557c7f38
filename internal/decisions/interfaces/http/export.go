package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	decisions "oran-rapps/internal/decisions/domain"
)

// Report is the input of the history exports.
type Report struct {
	RApp    string
	From    time.Time
	To      time.Time
	Records []decisions.Record
}

func (r Report) countByStatus() map[decisions.Status]int {
	counts := make(map[decisions.Status]int)
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	return counts
}

var summaryStatuses = []decisions.Status{
	decisions.StatusActuated,
	decisions.StatusNoAction,
	decisions.StatusSkipped,
	decisions.StatusError,
}

// BuildDecisionsPDF renders the decision history as a PDF table.
func BuildDecisionsPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "rApp Decision History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("rApp: %s", report.RApp))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", report.From.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", report.To.Format(time.RFC3339)))
	pdf.Ln(5)
	counts := report.countByStatus()
	for _, status := range summaryStatuses {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d", status, counts[status]))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Entity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Decision", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Target", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Previous", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, rec := range report.Records {
		pdf.CellFormat(45, 6, rec.TS.Format("2006-01-02 15:04:05"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, rec.Entity, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, rec.Decision, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, rec.Target, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, rec.Previous, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, string(rec.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDecisionsXLSX renders the decision history as a workbook with a
// summary sheet and a decisions sheet.
func BuildDecisionsXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "decisions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "rApp Decision History")
	_ = f.SetCellValue(summarySheet, "A3", "rApp")
	_ = f.SetCellValue(summarySheet, "B3", report.RApp)
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", report.From.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", report.To.Format(time.RFC3339))
	counts := report.countByStatus()
	for i, status := range summaryStatuses {
		row := 6 + i
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(status))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), counts[status])
	}

	headers := []string{"Time", "Cycle", "Entity", "Tag", "Decision", "Target", "Previous", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	for i, rec := range report.Records {
		row := i + 2
		values := []any{rec.TS.Format(time.RFC3339), rec.CycleID, rec.Entity, rec.Tag, rec.Decision, rec.Target, rec.Previous, string(rec.Status)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(itemsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
