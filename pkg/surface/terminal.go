package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
)

// TerminalRenderer renders results as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func bucketColor(b account.Bucket) string {
	if noColor() {
		return ""
	}
	switch b {
	case account.BucketGreen:
		return colorGreen
	case account.BucketAmber:
		return colorYellow
	case account.BucketRed:
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func (r *TerminalRenderer) Render(w io.Writer, report *Report) error {
	res := report.Result
	bc := bucketColor(res.Bucket)

	fmt.Fprintf(w, "%s\n\n",
		bold(fmt.Sprintf("%s: %s, score %.1f / %.0f",
			report.Account, colored(string(res.Bucket), bc), res.Score, scoring.MaxScore)))

	fmt.Fprintf(w, "Base %.1f, commercial adjustment %s\n\n", res.Base, signed(res.Adjustment))

	// Breakdown grouped in table order
	fmt.Fprintln(w, "Breakdown:")
	var group scoring.Group
	for _, s := range res.Breakdown {
		if s.Group != group {
			group = s.Group
			fmt.Fprintf(w, "  %s\n", bold(string(group)))
		}
		fmt.Fprintf(w, "    %-24s %5.1f / %-4.0f %s\n", s.Name, s.Points, s.Weight, dim(bar(s.Points, s.Weight, 20)))
	}
	fmt.Fprintln(w)

	if len(res.Factors) == 0 {
		fmt.Fprintln(w, "No factors.")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintln(w, "Factors:")
	for _, f := range res.Factors {
		c := colorGreen
		if f.Impact < 0 {
			c = colorRed
		}
		fmt.Fprintf(w, "  (%s) %s\n", colored(signed(f.Impact), c), f.Label)
	}
	fmt.Fprintln(w)

	return nil
}

func (r *TerminalRenderer) RenderHistory(w io.Writer, accountName string, history []account.HealthSnapshot) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("%s: %d snapshots", accountName, len(history))))
	if len(history) == 0 {
		fmt.Fprintln(w, "No snapshots recorded.")
		return nil
	}

	for i, s := range history {
		trend := ""
		if i+1 < len(history) {
			trend = dim(fmt.Sprintf(" (%s)", signed(s.Score-history[i+1].Score)))
		}
		fmt.Fprintf(w, "  %s  %5.1f  %-5s%s\n",
			s.CalculatedAt.UTC().Format("2006-01-02 15:04"),
			s.Score, colored(string(s.RiskLabel), bucketColor(s.RiskLabel)), trend)

		if neg := s.NegativeFactors(); len(neg) > 0 {
			top := neg
			if len(top) > 3 {
				top = top[:3]
			}
			fmt.Fprintf(w, "         %s\n", dim(strings.Join(account.Labels(top), ", ")))
		}
	}
	fmt.Fprintln(w)
	return nil
}

// bar draws points as a fraction of weight using width cells.
func bar(points, weight float64, width int) string {
	if weight <= 0 {
		return ""
	}
	filled := int(points / weight * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}
