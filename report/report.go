// Package report exports the leave ledger as an Excel workbook.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/leave-engine/leave"
)

var ErrNoRequests = errors.New("failed to generate report, 0 leave requests were provided")

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file *excelize.File
}

// Row is one leave request joined with its employee.
type Row struct {
	RequestID       string
	EmployeeName    string
	Role            string
	StoreID         string
	AreaID          string
	LeaveType       leave.LeaveType
	StartDate       string
	EndDate         string
	DurationDays    int
	Status          string
	Reason          string
	RejectionReason string
	CreatedAt       time.Time
}

var headers = []string{
	"Request ID", "Employee", "Role", "Store", "Area", "Start", "End",
	"Days", "Status", "Reason", "Rejection Reason", "Submitted",
}

// BuildRows joins requests with the roster, keeping ledger order.
func BuildRows(employees []leave.Employee, requests []leave.LeaveRequest) []Row {
	byID := make(map[string]leave.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	rows := make([]Row, 0, len(requests))
	for _, r := range requests {
		emp := byID[r.EmployeeID]
		name := emp.Name
		if name == "" {
			name = r.EmployeeID
		}
		rows = append(rows, Row{
			RequestID:       r.ID,
			EmployeeName:    name,
			Role:            string(emp.Role),
			StoreID:         emp.StoreID,
			AreaID:          emp.AreaID,
			LeaveType:       r.LeaveType,
			StartDate:       r.StartDate.String(),
			EndDate:         r.EndDate.String(),
			DurationDays:    r.DurationDays,
			Status:          string(r.Status),
			Reason:          r.Reason,
			RejectionReason: r.RejectionReason,
			CreatedAt:       r.CreatedAt,
		})
	}
	return rows
}

// GenerateExcelReport writes one sheet per leave type, in rule table order,
// each holding a styled table of its requests.
func GenerateExcelReport(rows []Row) (*bytes.Buffer, error) {
	if len(rows) == 0 {
		return nil, ErrNoRequests
	}

	rowsByType := make(map[leave.LeaveType][]Row)
	for _, row := range rows {
		rowsByType[row.LeaveType] = append(rowsByType[row.LeaveType], row)
	}

	gen := &Generator{file: excelize.NewFile()}
	defer gen.file.Close()

	for _, lt := range leave.LeaveTypes {
		typeRows, ok := rowsByType[lt]
		if !ok {
			continue
		}
		if err := gen.addSheet(string(lt), typeRows); err != nil {
			return nil, err
		}
	}

	// delete default sheet
	if sheetIndex, _ := gen.file.GetSheetIndex("Sheet1"); sheetIndex != -1 {
		if err := gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}

	// setup first sheet as active
	gen.file.SetActiveSheet(0)

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer, nil
}

func (g *Generator) addSheet(sheetName string, rows []Row) error {
	if _, err := g.file.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to generate new sheet '%s': %w", sheetName, err)
	}
	if err := g.setupSheet(sheetName, len(rows)); err != nil {
		return fmt.Errorf("failed to setup sheet '%s': %w", sheetName, err)
	}

	// row 1 is the header
	for i, row := range rows {
		if err := g.addRow(sheetName, i+2, row); err != nil {
			return fmt.Errorf("failed to add row '%d': %w", i+2, err)
		}
	}
	return nil
}

func (g *Generator) setupSheet(sheetName string, rowCount int) error {
	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}

	if err = g.file.SetRowHeight(sheetName, 1, 20); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	widths := map[string]float64{
		"A": 38, "B": 24, "C": 20, "D": 12, "E": 10, "F": 12,
		"G": 12, "H": 8, "I": 10, "J": 40, "K": 40, "L": 18,
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:%s%d", lastCol, rowCount+1),
		Name:      "table_" + sheetName,
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}
	return nil
}

func (g *Generator) addRow(sheetName string, rowNum int, row Row) error {
	rowData := []interface{}{
		row.RequestID,
		row.EmployeeName,
		row.Role,
		row.StoreID,
		row.AreaID,
		row.StartDate,
		row.EndDate,
		row.DurationDays,
		row.Status,
		row.Reason,
		row.RejectionReason,
		row.CreatedAt.Format("2006-01-02 15:04"),
	}

	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return g.file.SetSheetRow(sheetName, cell, &rowData)
}
