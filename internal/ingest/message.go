// Package ingest consumes readings from a message broker and appends them
// to the readings store in batches.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/solatis/datex/internal/types"
)

// message is the wire form of one reading. The underscore and data_*
// names are the column names of the CSV exports readings historically
// came from.
type message struct {
	Time      json.RawMessage `json:"time"`
	TimeAlias json.RawMessage `json:"_time"`
	Location  string          `json:"location"`
	Source    string          `json:"source"`
	Metric    string          `json:"metric"`
	DataKey   string          `json:"data_key"`
	Quantity  string          `json:"quantity"`
	Value     *float64        `json:"value"`
	DataValue *float64        `json:"data_value"`
}

// Decode parses one broker payload into a Row. Every failure wraps
// types.ErrMalformedReading.
func Decode(payload []byte) (types.Row, error) {
	var m message
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&m); err != nil {
		return types.Row{}, fmt.Errorf("%w: %v", types.ErrMalformedReading, err)
	}

	rawTime := m.Time
	if len(rawTime) == 0 {
		rawTime = m.TimeAlias
	}
	ts, err := parseTime(rawTime)
	if err != nil {
		return types.Row{}, fmt.Errorf("%w: %v", types.ErrMalformedReading, err)
	}

	row := types.Row{
		Time:      ts,
		Location:  strings.TrimSpace(m.Location),
		SourceTag: strings.TrimSpace(m.Source),
		Metric:    strings.TrimSpace(firstNonEmpty(m.Metric, m.DataKey, m.Quantity)),
	}
	switch {
	case m.Value != nil:
		row.Value = *m.Value
	case m.DataValue != nil:
		row.Value = *m.DataValue
	default:
		return types.Row{}, fmt.Errorf("%w: value is required", types.ErrMalformedReading)
	}

	if row.Location == "" || row.SourceTag == "" || row.Metric == "" {
		return types.Row{}, fmt.Errorf("%w: location, source and metric are required", types.ErrMalformedReading)
	}
	if math.IsNaN(row.Value) || math.IsInf(row.Value, 0) {
		return types.Row{}, fmt.Errorf("%w: value is not finite", types.ErrMalformedReading)
	}
	return row, nil
}

// parseTime accepts an RFC 3339 string or a Unix millisecond number.
func parseTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time %q", s)
		}
		return t.UTC(), nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("invalid time %s", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
