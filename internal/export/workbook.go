package export

import (
	"fmt"
	"io"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/units"
	"github.com/xuri/excelize/v2"
)

const (
	samplesSheet   = "Samples"
	cylindersSheet = "Cylinders"
)

// WriteWorkbook writes the profile of series as an XLSX workbook with a
// Samples sheet (one row per stored sample, values in the chosen units) and
// a Cylinders sheet.
func WriteWorkbook(w io.Writer, series *dive.Series, system units.System) error {
	errFactory := errors.New()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(samplesSheet); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	if _, err := f.NewSheet(cylindersSheet); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}

	header, err := headerStyle(f)
	if err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}

	conv := units.NewConverter(system)
	if err := writeSamples(f, series, conv, header); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	if err := writeCylinders(f, series, conv, header); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}

	if idx, err := f.GetSheetIndex(samplesSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if _, err := f.WriteTo(w); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 14); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSamples(f *excelize.File, series *dive.Series, conv *units.Converter, style int) error {
	samples := series.Samples()
	cylinders := series.CylinderCount()

	sensors := 0
	for _, s := range samples {
		for _, i := range s.PO2Sensors.Indices() {
			if i+1 > sensors {
				sensors = i + 1
			}
		}
	}

	header := []any{
		"Time (s)",
		fmt.Sprintf("Depth (%s)", conv.DepthUnit()),
		fmt.Sprintf("Temperature (%s)", conv.TemperatureUnit()),
		"NDL (min)",
		"TTS (min)",
		fmt.Sprintf("Ceiling (%s)", conv.DepthUnit()),
		"O2 (%)",
	}
	for i := 0; i < cylinders; i++ {
		header = append(header, fmt.Sprintf("%s (%s)", series.CylinderDescription(i), conv.PressureUnit()))
	}
	for i := 0; i < sensors; i++ {
		header = append(header, fmt.Sprintf("PO2 cell %d", i+1))
	}
	if sensors > 0 {
		header = append(header, "PO2")
	}

	if err := writeRow(f, samplesSheet, 1, header); err != nil {
		return err
	}

	for r, s := range samples {
		row := []any{
			s.Timestamp,
			conv.Depth(s.Depth),
			conv.Temperature(s.Temperature),
			s.NDL,
			s.TTS,
			conv.Depth(s.Ceiling),
			s.O2Percent,
		}
		for i := 0; i < cylinders; i++ {
			if s.Pressures.Has(i) {
				row = append(row, conv.Pressure(s.Pressure(i)))
			} else {
				row = append(row, "")
			}
		}
		for i := 0; i < sensors; i++ {
			row = append(row, s.PO2Sensor(i))
		}
		if sensors > 0 {
			row = append(row, s.CompositePO2())
		}
		if err := writeRow(f, samplesSheet, r+2, row); err != nil {
			return err
		}
	}

	return styleHeader(f, samplesSheet, len(header), style)
}

func writeCylinders(f *excelize.File, series *dive.Series, conv *units.Converter, style int) error {
	p := conv.PressureUnit()
	header := []any{
		"Cylinder", "Description", "Size (l)",
		fmt.Sprintf("Work pressure (%s)", p),
		"O2 (%)", "He (%)",
		fmt.Sprintf("Start (%s)", p),
		fmt.Sprintf("End (%s)", p),
	}
	if err := writeRow(f, cylindersSheet, 1, header); err != nil {
		return err
	}

	for r, c := range series.Cylinders() {
		row := []any{
			c.Index + 1,
			c.Label(),
			c.Size,
			conv.Pressure(c.WorkPressure),
			c.O2Percent,
			c.HePercent,
			conv.Pressure(c.StartPressure),
			conv.Pressure(c.EndPressure),
		}
		if err := writeRow(f, cylindersSheet, r+2, row); err != nil {
			return err
		}
	}

	return styleHeader(f, cylindersSheet, len(header), style)
}
