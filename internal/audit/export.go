package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

// WriteCSV serialises the journal, one row per entry.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Auteur", "E-mail", "Action", "Entité", "Identifiant", "Détails"}); err != nil {
		return err
	}
	for _, row := range rows {
		line := row.Line()
		meta := ""
		if len(row.Meta) > 0 {
			if b, err := json.Marshal(row.Meta); err == nil {
				meta = string(b)
			}
		}
		if err := writer.Write([]string{
			row.At.UTC().Format("2006-01-02 15:04:05"),
			line.Actor,
			row.Email,
			line.Action,
			line.Entity,
			row.EntityID,
			meta,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
