// Package export renders expenses as spreadsheet rows and xlsx workbooks.
package export

import (
	"bytes"
	"fmt"

	"github.com/goodsign/monday"
	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/period"
)

const (
	SheetName    = "Gastos"
	FullFilename = "gastos-familia-completo.xlsx"
)

// Header is the column row of every export.
var Header = []string{"Fecha", "Descripcion", "Cantidad", "Persona", "PartidaEspecial"}

// Rows converts expenses into export rows in input order.
func Rows(expenses []core.Expense) [][]any {
	rows := make([][]any, 0, len(expenses))
	for _, e := range expenses {
		special := "No"
		if e.PartidaEspecial {
			special = "Sí"
		}
		rows = append(rows, []any{
			period.DisplayDate(e.Fecha.String()),
			e.Descripcion,
			e.Amount(),
			e.Persona,
			special,
		})
	}
	return rows
}

// Filename returns the download name for a month export, or the full
// export when month is nil.
func Filename(month *period.Month, locale monday.Locale) string {
	if month == nil {
		return FullFilename
	}
	return fmt.Sprintf("gastos-%s.xlsx", slug.Make(month.Label(locale)))
}

// File is a rendered workbook.
type File struct {
	Name    string
	Content []byte
	Rows    int
}

// Workbook renders expenses into an xlsx file. A non-nil month keeps only
// that month's records.
func Workbook(expenses []core.Expense, month *period.Month, locale monday.Locale) (*File, error) {
	if month != nil {
		expenses = aggregate.FilterByMonth(expenses, *month)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	rows := Rows(expenses)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &File{Name: Filename(month, locale), Content: buf.Bytes(), Rows: len(rows)}, nil
}
