package jira

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTime_RoundTrip(t *testing.T) {
	raw := `"2021-03-04T11:22:33.000+0300"`

	var parsed Time
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Year() != 2021 || parsed.Month() != time.March || parsed.Day() != 4 {
		t.Errorf("parsed date = %v", parsed.Time)
	}
	if parsed.Hour() != 11 || parsed.Minute() != 22 {
		t.Errorf("parsed time = %v", parsed.Time)
	}

	out, err := json.Marshal(parsed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("marshal = %s, want %s", out, raw)
	}
}

func TestTime_Null(t *testing.T) {
	var parsed Time
	if err := json.Unmarshal([]byte("null"), &parsed); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !parsed.IsZero() {
		t.Errorf("null should parse to zero time, got %v", parsed.Time)
	}
	out, _ := json.Marshal(Time{})
	if string(out) != "null" {
		t.Errorf("zero time marshal = %s, want null", out)
	}
}

func TestDate_RoundTrip(t *testing.T) {
	raw := `"2021-12-31"`
	var parsed Date
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(parsed)
	if string(out) != raw {
		t.Errorf("marshal = %s, want %s", out, raw)
	}
}

func TestSecondsToEstimate(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0h 0m"},
		{60, "0h 1m"},
		{3600, "1h 0m"},
		{5400, "1h 30m"},
		{3661, "1h 1m"},
		{-5, "0h 0m"},
		{36000, "10h 0m"},
	}
	for _, tt := range tests {
		if got := SecondsToEstimate(tt.seconds); got != tt.want {
			t.Errorf("SecondsToEstimate(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEstimateToSeconds(t *testing.T) {
	tests := []struct {
		estimate string
		want     int64
	}{
		{"1h 30m", 5400},
		{"2h", 7200},
		{"45m", 2700},
		{"0h 0m", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := EstimateToSeconds(tt.estimate); got != tt.want {
			t.Errorf("EstimateToSeconds(%q) = %d, want %d", tt.estimate, got, tt.want)
		}
	}
}
