// Package export serializes clearing results for downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/dmas-energy/dmas/core/market"
	"github.com/dmas-energy/dmas/core/model"
)

// WriteJSON writes the clearing results to w in JSON format.
func WriteJSON(w io.Writer, results []market.ClearingResult) error {
	enc := json.NewEncoder(w)
	return enc.Encode(results)
}

// WriteCSV writes the clearing results to w as one row per hour.
func WriteCSV(w io.Writer, results []market.ClearingResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "hour", "price_eur_mwh", "volume_kw", "traded"}); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			model.DateKey(r.Date),
			strconv.Itoa(r.Hour),
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Volume, 'f', -1, 64),
			strconv.FormatBool(r.Traded),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
