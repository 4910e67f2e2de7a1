package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/open-assess/qtiproc/internal/session"
)

// GET /items/{id}/results.xlsx
// One row per session: candidate, attempts, completion and the raw outcome
// payloads. Outcome columns are the union across sessions.
func ResultsExportHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "id")
		if _, err := svc.Item(r.Context(), itemID); err != nil {
			writeStoreError(w, err)
			return
		}
		sessions, err := svc.SessionsForItem(r.Context(), itemID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		outcomeCols := outcomeColumns(sessions)
		headers := append([]string{"session_id", "candidate", "num_attempts", "completion_status"}, outcomeCols...)

		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
		for row, sess := range sessions {
			cells := []any{sess.ID, sess.Candidate, sess.NumAttempts, sess.CompletionStatus}
			for _, col := range outcomeCols {
				cells = append(cells, outcomeCell(sess.Outcomes, col))
			}
			for col, v := range cells {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				_ = f.SetCellValue(sheet, cell, v)
			}
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", itemID+"-results.xlsx"))
		if err := f.Write(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func outcomeColumns(sessions []session.Session) []string {
	seen := map[string]bool{}
	var cols []string
	for _, sess := range sessions {
		for id := range sess.Outcomes {
			if !seen[id] {
				seen[id] = true
				cols = append(cols, id)
			}
		}
	}
	// Stable order: SCORE first, then the rest alphabetically.
	sort.Slice(cols, func(i, j int) bool {
		a, b := cols[i], cols[j]
		if a == "SCORE" || b == "SCORE" {
			return a == "SCORE" && b != "SCORE"
		}
		return a < b
	})
	return cols
}

// outcomeCell flattens a PCI payload to a spreadsheet-friendly cell. Single
// base values unwrap to their inner value; everything else stays JSON.
func outcomeCell(snap session.Snapshot, identifier string) any {
	raw, ok := snap[identifier]
	if !ok {
		return ""
	}
	var envelope struct {
		Base map[string]any `json:"base"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Base) == 1 {
		for _, v := range envelope.Base {
			switch v.(type) {
			case string, float64, bool:
				return v
			}
		}
	}
	return string(raw)
}
