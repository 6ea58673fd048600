package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/paroisse/paroisse/internal/finances/offrandes"
	"github.com/paroisse/paroisse/internal/finances/versements"
)

const csvDate = "2006-01-02"

// WriteVersementsCSV serialises versements, one row each.
func WriteVersementsCSV(w io.Writer, rows []versements.Versement) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Matricule", "Paroissien", "Type", "Somme", "Engagement", "Référence", "Notes", "Saisi par"}); err != nil {
		return err
	}
	for _, v := range rows {
		engagement := ""
		if v.EngagementID != nil {
			engagement = strconv.FormatInt(*v.EngagementID, 10)
		}
		if err := writer.Write([]string{
			v.DateVersement.Format(csvDate),
			v.ParoissienMatricule,
			v.ParoissienName,
			v.TypeLabel(),
			strconv.FormatInt(v.Somme, 10),
			engagement,
			v.Reference,
			v.Notes,
			v.CreatedByName,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOffrandesCSV serialises offrandes, one row each.
func WriteOffrandesCSV(w io.Writer, rows []offrandes.Offrande) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Association", "Somme", "Description", "Saisi par"}); err != nil {
		return err
	}
	for _, o := range rows {
		if err := writer.Write([]string{
			o.OffrandeDay.Format(csvDate),
			o.AssociationName,
			strconv.FormatInt(o.Somme, 10),
			o.Description,
			o.CreatedByName,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
