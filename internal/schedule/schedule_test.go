package schedule

import (
	"fmt"
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	s, err := Parse(`{"kind":"cron","cron_expr":"0 9 * * *"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected schedule: %+v", s)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"kind":"bogus"}`,
		`{"kind":"cron","cron_expr":"bad"}`,
		`{"kind":"interval","interval_ms":0}`,
		`{"kind":"once","at_ms":-5}`,
	}
	for _, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestNextCron(t *testing.T) {
	s, err := Parse(`{"kind":"cron","cron_expr":"0 9 * * *"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next := s.Next(now)
	if next == nil {
		t.Fatal("expected next fire time, got nil")
	}
	if !next.After(now) {
		t.Error("expected next fire after now")
	}
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("expected 09:00 fire, got %v", next)
	}
}

func TestNextInterval(t *testing.T) {
	s, err := Parse(`{"kind":"interval","interval_ms":60000}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	now := time.Now()
	next := s.Next(now)
	if next == nil {
		t.Fatal("expected next fire time, got nil")
	}
	if got := next.Sub(now); got != time.Minute {
		t.Errorf("expected fire in 1m, got %v", got)
	}
}

func TestNextOnce(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour).UnixMilli()
	s, err := Parse(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, future))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.Next(now) == nil {
		t.Error("expected fire time for future once schedule")
	}

	// A once schedule in the past never fires again.
	if s.Next(now.Add(2*time.Hour)) != nil {
		t.Error("expected nil for exhausted once schedule")
	}
}

func TestNextFromJSONInvalid(t *testing.T) {
	if NextFromJSON(`invalid json`, time.Now()) != nil {
		t.Error("expected nil for invalid schedule")
	}
}

func TestNormalizePlainCron(t *testing.T) {
	result, err := Normalize("0 9 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := Parse(result)
	if err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected result: %+v", s)
	}
}

func TestNormalizePassthroughJSON(t *testing.T) {
	for _, input := range []string{
		`{"kind":"cron","cron_expr":"0 9 * * *"}`,
		`{"kind":"interval","interval_ms":300000}`,
	} {
		result, err := Normalize(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != input {
			t.Errorf("expected passthrough, got '%s'", result)
		}
	}
}

func TestNormalizeInvalid(t *testing.T) {
	for _, input := range []string{
		"not a cron",
		`{"kind":"cron","cron_expr":"bad"}`,
		`{"kind":"bogus"}`,
	} {
		if _, err := Normalize(input); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestNormalizeTrimsWhitespace(t *testing.T) {
	result, err := Normalize("  */5 * * * *  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := Parse(result)
	if err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if s.CronExpr != "*/5 * * * *" {
		t.Errorf("expected trimmed cron, got '%s'", s.CronExpr)
	}
}

func TestDescribe(t *testing.T) {
	cases := map[string]string{
		`{"kind":"cron","cron_expr":"0 9 * * *"}`:  "cron 0 9 * * *",
		`{"kind":"interval","interval_ms":300000}`: "every 5m0s",
	}
	for raw, want := range cases {
		s, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if got := s.Describe(); got != want {
			t.Errorf("describe %s: expected %q, got %q", raw, want, got)
		}
	}
}
