package presentation

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WorkbookRenderer writes the series as a single-sheet xlsx workbook.
type WorkbookRenderer struct{}

// NewWorkbookRenderer returns a WorkbookRenderer.
func NewWorkbookRenderer() *WorkbookRenderer { return &WorkbookRenderer{} }

// Ext is the artifact file extension.
func (r *WorkbookRenderer) Ext() string { return "xlsx" }

// Render writes s as xlsx to w. The sheet is named after the ticker.
func (r *WorkbookRenderer) Render(w io.Writer, s Series) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(s)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := []any{"Date", "Open", "High", "Low", "Close", s.SMALabel()}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range s.Points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.Date, p.Open, p.High, p.Low, p.Close, p.SMA}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SheetName returns the worksheet name used for s.
func SheetName(s Series) string {
	if s.Ticker == "" {
		return "Series"
	}
	return s.Ticker
}
