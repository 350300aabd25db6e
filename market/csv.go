package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoTimestampColumn is returned when a candle CSV has no "timestamp" header.
var ErrNoTimestampColumn = errors.New("csv must contain a 'timestamp' column")

// LoadCandlesCSV reads OHLCV candles from a CSV file with a header row:
//
//	timestamp,open,high,low,close,volume
//
// timestamp is RFC3339 or unix milliseconds. Rows are returned sorted by time.
func LoadCandlesCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cs, err := ReadCandlesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

// ReadCandlesCSV parses candles from r. See LoadCandlesCSV for the format.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoTimestampColumn
	}
	if err != nil {
		return nil, err
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	tsIdx, ok := cols["timestamp"]
	if !ok {
		return nil, ErrNoTimestampColumn
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv missing %q column", name)
		}
	}

	var out []Candle
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		t, err := parseTimestamp(field(row, tsIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c := Candle{Time: t}
		for _, p := range []struct {
			name string
			dst  *float64
		}{
			{"open", &c.Open},
			{"high", &c.High},
			{"low", &c.Low},
			{"close", &c.Close},
		} {
			if *p.dst, err = parsePrice(row, cols, p.name); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if _, ok := cols["volume"]; ok {
			if c.Volume, err = parseVolume(row, cols); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		out = append(out, c)
	}

	SortCandles(out)
	return out, nil
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parsePrice requires a finite, positive number.
func parsePrice(row []string, cols map[string]int, name string) (float64, error) {
	s := field(row, cols[name])
	if s == "" {
		return 0, fmt.Errorf("empty %s", name)
	}
	v, err := parseFinite(name, s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0, got %v", name, v)
	}
	return v, nil
}

// parseVolume treats an empty field as 0.
func parseVolume(row []string, cols map[string]int) (float64, error) {
	s := field(row, cols["volume"])
	if s == "" {
		return 0, nil
	}
	v, err := parseFinite("volume", s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("volume must be >= 0, got %v", v)
	}
	return v, nil
}

func parseFinite(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad %s %q: not finite", name, s)
	}
	return v, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04:05-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
