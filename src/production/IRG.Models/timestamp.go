package irgmodels

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for DATA_HORA_COLETA cells, tried in order.
// Slash dates are day-first, as exported by the field spreadsheets.
var collectedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseCollectedAt parses a timestamp cell. Layouts without a zone are read in loc
// (UTC when loc is nil).
func ParseCollectedAt(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range collectedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", raw)
}

// ParseRelayStatus parses a boolean-like numeric cell into 0 or 1.
// An empty cell is reported as nil without error.
func ParseRelayStatus(raw string) (*int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return nil, nil
	case "true", "ligado", "on":
		return IntPtr(RelayOn), nil
	case "false", "desligado", "off":
		return IntPtr(RelayOff), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse relay status %q", raw)
	}
	switch f {
	case 0:
		return IntPtr(RelayOff), nil
	case 1:
		return IntPtr(RelayOn), nil
	}
	return nil, fmt.Errorf("relay status must be 0 or 1, got %q", raw)
}

// ParseValue parses a numeric cell, accepting a decimal comma.
func ParseValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse value %q", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %q is not a finite number", raw)
	}
	return f, nil
}
