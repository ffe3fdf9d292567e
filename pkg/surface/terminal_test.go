package surface_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
	"github.com/healthscope/healthscope/pkg/surface"
)

func sampleReport() *surface.Report {
	return &surface.Report{
		Account: "Northwind",
		Result: scoring.Result{
			Score:      44.5,
			Bucket:     account.BucketRed,
			Base:       49.5,
			Adjustment: -5,
			Breakdown: []scoring.SubScore{
				{Key: scoring.KeyAdoptionRatio, Name: "User adoption ratio", Group: scoring.GroupAdoption, Points: 5, Weight: 20},
				{Key: scoring.KeyNPS, Name: "Net promoter score", Group: scoring.GroupAdvocacy, Points: 6, Weight: 15},
			},
			Factors: []account.HealthFactor{
				{Label: "Detractor NPS", Impact: -9},
				{Label: "High feature adoption", Impact: 8},
				{Label: "Renewal risk: low adoption", Impact: -5},
			},
		},
	}
}

func sampleHistory() []account.HealthSnapshot {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return []account.HealthSnapshot{
		{ID: "s2", CalculatedAt: t0.Add(48 * time.Hour), Score: 44.5, RiskLabel: account.BucketRed,
			Factors: []account.HealthFactor{{Label: "Detractor NPS", Impact: -9}}},
		{ID: "s1", CalculatedAt: t0, Score: 61, RiskLabel: account.BucketAmber,
			Factors: []account.HealthFactor{{Label: "High feature adoption", Impact: 8}}},
	}
}

func TestTerminalRenderer_BasicOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer
	if err := r.Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Northwind: Red, score 44.5 / 110",
		"commercial adjustment -5.0",
		"Adoption",
		"User adoption ratio",
		"(-9.0) Detractor NPS",
		"(+8.0) High feature adoption",
		"Renewal risk: low adoption",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestTerminalRenderer_NoFactors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	err := (&surface.TerminalRenderer{}).Render(&buf, &surface.Report{Account: "Empty"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(buf.String(), "No factors") {
		t.Error("expected 'No factors' message")
	}
}

func TestTerminalRenderer_ColorRespected(t *testing.T) {
	os.Unsetenv("NO_COLOR")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI escape codes when NO_COLOR is not set")
	}
}

func TestTerminalRenderer_History(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).RenderHistory(&buf, "Northwind", sampleHistory()); err != nil {
		t.Fatalf("RenderHistory() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "2 snapshots") {
		t.Error("expected snapshot count")
	}
	if !strings.Contains(output, "(-16.5)") {
		t.Errorf("expected trend against previous snapshot:\n%s", output)
	}
	if strings.Index(output, "2026-10-03") > strings.Index(output, "2026-10-01") {
		t.Error("expected most recent snapshot first")
	}
}

func TestMarkdownRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.MarkdownRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "## :red_circle: Northwind: Red, score 44.5") {
		t.Errorf("unexpected header:\n%s", output)
	}
	if !strings.Contains(output, "- **Detractor NPS** (-9.0)") {
		t.Error("expected factor bullet")
	}
	if !strings.Contains(output, "| Commercial adjustment | | -5.0 | |") {
		t.Error("expected commercial adjustment row")
	}

	buf.Reset()
	if err := (&surface.MarkdownRenderer{}).RenderHistory(&buf, "Northwind", sampleHistory()); err != nil {
		t.Fatalf("RenderHistory() error: %v", err)
	}
	if !strings.Contains(buf.String(), "| 2026-10-03 09:00 | 44.5 | :red_circle: Red | Detractor NPS (-9.0) |") {
		t.Errorf("unexpected history table:\n%s", buf.String())
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.JSONRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var decoded struct {
		Account string `json:"account"`
		Result  struct {
			Score   float64 `json:"score"`
			Bucket  string  `json:"bucket"`
			Factors []struct {
				Factor string  `json:"factor"`
				Impact float64 `json:"impact"`
			} `json:"factors"`
		} `json:"result"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Result.Bucket != "Red" || len(decoded.Result.Factors) != 3 {
		t.Errorf("unexpected decode: %+v", decoded)
	}
	if decoded.Result.Factors[0].Factor != "Detractor NPS" {
		t.Errorf("factor order not preserved: %+v", decoded.Result.Factors)
	}
}

func TestForFormat(t *testing.T) {
	for _, f := range []string{"", "text", "json", "markdown", "md"} {
		if _, err := surface.ForFormat(f); err != nil {
			t.Errorf("ForFormat(%q) error: %v", f, err)
		}
	}
	if _, err := surface.ForFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
