// Package export writes charging plans in formats meant for other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Formats lists the accepted output formats.
var Formats = []string{"table", "json", "csv"}

// WriteJSON writes the slots of consumer to w as a JSON array.
func WriteJSON(w io.Writer, consumer string, slots []model.ScheduleSlot) error {
	type row struct {
		Consumer string    `json:"consumer"`
		Start    time.Time `json:"start"`
		End      time.Time `json:"end"`
		Price    float64   `json:"price"`
	}
	rows := make([]row, len(slots))
	for i, s := range slots {
		rows[i] = row{Consumer: consumer, Start: s.StartTime, End: s.End(), Price: s.Price}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV writes the slots of consumer to w in CSV format with a header.
func WriteCSV(w io.Writer, consumer string, slots []model.ScheduleSlot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"consumer", "start", "end", "price"}); err != nil {
		return err
	}
	for _, s := range slots {
		rec := []string{
			consumer,
			s.StartTime.UTC().Format(time.RFC3339),
			s.End().UTC().Format(time.RFC3339),
			strconv.FormatFloat(s.Price, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches to the writer of format. The table format is handled by
// callers and rejected here.
func Write(w io.Writer, format, consumer string, slots []model.ScheduleSlot) error {
	switch format {
	case "json":
		return WriteJSON(w, consumer, slots)
	case "csv":
		return WriteCSV(w, consumer, slots)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
