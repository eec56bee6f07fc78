package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

const classSheet = "Class"

var sheetNameReplacer = strings.NewReplacer("[", "", "]", "", ":", "", "*", "", "?", "", "/", "", `\`, "")

// Filename is the download name for a workbook generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("class_credentials_%s.xlsx", t.Format("2006-01-02"))
}

// WriteCredentials renders one printable sheet per record plus an aggregate class sheet.
func WriteCredentials(w io.Writer, records []domain.Record, generated time.Time) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", classSheet); err != nil {
		return fmt.Errorf("rename class sheet: %w", err)
	}

	title, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return fmt.Errorf("create title style: %w", err)
	}
	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create bold style: %w", err)
	}

	if err := writeClassSheet(wb, records, generated, title, bold); err != nil {
		return err
	}
	for i, r := range records {
		if err := writeRecordSheet(wb, sheetName(i, r), r, generated, title, bold); err != nil {
			return err
		}
	}

	wb.SetActiveSheet(0)
	if err := wb.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeClassSheet(wb *excelize.File, records []domain.Record, generated time.Time, title, bold int) error {
	rows := [][]any{
		{"Class Account Information"},
		{fmt.Sprintf("%d Student Accounts Created", len(records))},
		{"Generated: " + generated.Format("2006-01-02")},
		{},
		{"Name", "Username", "Password"},
	}
	for _, r := range records {
		rows = append(rows, []any{r.DisplayName(), username(r), r.Password})
	}

	if err := setRows(wb, classSheet, rows); err != nil {
		return err
	}
	if err := wb.SetCellStyle(classSheet, "A1", "A1", title); err != nil {
		return err
	}
	if err := wb.SetCellStyle(classSheet, "A5", "C5", bold); err != nil {
		return err
	}
	return wb.SetColWidth(classSheet, "A", "C", 24)
}

func writeRecordSheet(wb *excelize.File, name string, r domain.Record, generated time.Time, title, bold int) error {
	if _, err := wb.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	rows := [][]any{
		{"Student Account Information"},
		{},
		{"Student Name:", r.DisplayName()},
		{"Username:", username(r)},
		{"Password:", r.Password},
		{},
		{"Instructions:"},
		{"1. Keep this information safe and secure"},
		{"2. Use the username and password to log into the classroom"},
		{"3. Change password after first login if desired"},
		{},
		{"Generated on: " + generated.Format("2006-01-02")},
	}
	if err := setRows(wb, name, rows); err != nil {
		return err
	}
	if err := wb.SetCellStyle(name, "A1", "A1", title); err != nil {
		return err
	}
	if err := wb.SetCellStyle(name, "B3", "B5", bold); err != nil {
		return err
	}
	return wb.SetColWidth(name, "A", "B", 28)
}

func setRows(wb *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func username(r domain.Record) string {
	if r.Username != "" {
		return r.Username
	}
	return strings.ToLower(r.FirstName + r.LastInitial)
}

// sheetName builds a unique, Excel-safe sheet title for the i-th record.
func sheetName(i int, r domain.Record) string {
	name := sheetNameReplacer.Replace(fmt.Sprintf("%d %s", i+1, r.DisplayName()))
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
