package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ayurclinic/clinic/internal/domain/patient"
)

const RosterSheet = "Patients"

var rosterHeaders = []interface{}{
	"Login ID", "Name", "Age", "Gender", "Dominant Prakriti", "Agni",
	"BP", "Weight", "Diet Charts", "Created", "Last Login",
}

// BuildRoster writes one row per patient into an xlsx workbook.
func BuildRoster(patients []*patient.Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", RosterSheet)
	if err := f.SetSheetRow(RosterSheet, "A1", &rosterHeaders); err != nil {
		return nil, fmt.Errorf("write roster header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("roster style: %w", err)
	}
	if err := f.SetCellStyle(RosterSheet, "A1", "K1", bold); err != nil {
		return nil, fmt.Errorf("roster style: %w", err)
	}

	for i, p := range patients {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := rosterRow(p)
		if err := f.SetSheetRow(RosterSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write roster row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(RosterSheet, "A", "K", 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write roster: %w", err)
	}
	return buf.Bytes(), nil
}

func rosterRow(p *patient.Patient) []interface{} {
	s := p.Summary()
	age, bp, weight, lastLogin := "", "", "", ""
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	if p.BP != nil {
		bp = *p.BP
	}
	if p.Weight != nil {
		weight = strconv.FormatFloat(*p.Weight, 'f', -1, 64)
	}
	if p.LastLogin != nil {
		lastLogin = p.LastLogin.Format("2006-01-02 15:04")
	}
	return []interface{}{
		p.LoginID, p.Name, age, string(p.Gender), string(p.DominantPrakriti), string(p.Agni),
		bp, weight, s.ChartCount, p.CreatedAt.Format("2006-01-02"), lastLogin,
	}
}
