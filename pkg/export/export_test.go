package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dmas-energy/dmas/core/market"
)

func sampleResults() []market.ClearingResult {
	date := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	return []market.ClearingResult{
		{Date: date, Hour: 0, Price: 32.5, Volume: 110, Traded: true},
		{Date: date, Hour: 1, Traded: false},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResults()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var decoded []market.ClearingResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Price != 32.5 || decoded[1].Traded {
		t.Fatalf("unexpected round trip: %+v", decoded)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResults()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %d lines", len(lines))
	}
	if lines[0] != "date,hour,price_eur_mwh,volume_kw,traded" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2024-05-15,0,32.5,110,true") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}
