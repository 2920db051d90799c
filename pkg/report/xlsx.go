package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	predictionSheet = "Prediction"
	excludedSheet   = "Excluded"
)

var predictionHeader = []string{"Pos", "Driver", "Lap", "Gap", "S1", "S2", "S3"}

type styles struct {
	title, header, pole, row int
}

func newStyles(f *excelize.File) (styles, error) {
	var (
		s   styles
		err error
	)
	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 14, Bold: true},
	}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1c399e"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Color: "ffffff", Bold: true},
	}); err != nil {
		return s, err
	}
	if s.pole, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"3cb03a"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Bold: true},
	}); err != nil {
		return s, err
	}
	s.row, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	return s, err
}

// WriteXLSX writes p as a workbook with a Prediction sheet (title row, header
// row, one row per entry) and, if any driver was excluded, an Excluded sheet.
func WriteXLSX(w io.Writer, p *Prediction) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}

	if err := f.SetSheetName("Sheet1", predictionSheet); err != nil {
		return err
	}

	sheet := predictionSheet
	if err := setRow(f, sheet, 1, st.title, fmt.Sprintf("%d %s", p.Season, p.Race)); err != nil {
		return err
	}
	if err := setRow(f, sheet, 2, st.header, toAny(predictionHeader)...); err != nil {
		return err
	}

	for i, e := range p.Entries {
		gap := ""
		if i > 0 {
			gap = formatGap(p.Gap(i))
		}
		style := st.row
		if i == 0 {
			style = st.pole
		}
		if err := setRow(f, sheet, i+3, style,
			e.Position, string(e.Driver), e.Time.String(), gap,
			e.Sectors[0].String(), e.Sectors[1].String(), e.Sectors[2].String(),
		); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "G", 12); err != nil {
		return err
	}

	if len(p.Excluded) > 0 {
		if _, err := f.NewSheet(excludedSheet); err != nil {
			return err
		}
		if err := setRow(f, excludedSheet, 1, st.header, "Driver", "Reason"); err != nil {
			return err
		}
		for i, d := range p.ExcludedDrivers() {
			if err := setRow(f, excludedSheet, i+2, st.row, string(d), p.Excluded[d]); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// setRow writes values into consecutive cells of row starting at column A and
// applies style to them.
func setRow(f *excelize.File, sheet string, row, style int, values ...any) error {
	if len(values) == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, first, &values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
