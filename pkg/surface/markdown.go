package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/healthscope/healthscope/pkg/account"
)

// MarkdownRenderer produces markdown health cards suitable for CRM notes and
// chat messages.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, report *Report) error {
	_, err := io.WriteString(w, buildMarkdownSummary(report))
	return err
}

func (r *MarkdownRenderer) RenderHistory(w io.Writer, accountName string, history []account.HealthSnapshot) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s: health history\n\n", accountName)
	if len(history) == 0 {
		sb.WriteString("_No snapshots recorded._\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sb.WriteString("| Calculated | Score | Bucket | Top factor |\n|---|---|---|---|\n")
	for _, s := range history {
		top := ""
		if len(s.Factors) > 0 {
			top = fmt.Sprintf("%s (%s)", s.Factors[0].Label, signed(s.Factors[0].Impact))
		}
		fmt.Fprintf(&sb, "| %s | %.1f | %s %s | %s |\n",
			s.CalculatedAt.UTC().Format("2006-01-02 15:04"), s.Score, bucketIcon(s.RiskLabel), s.RiskLabel, top)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func buildMarkdownSummary(report *Report) string {
	var sb strings.Builder
	res := report.Result

	fmt.Fprintf(&sb, "## %s %s: %s, score %.1f\n\n", bucketIcon(res.Bucket), report.Account, res.Bucket, res.Score)

	sb.WriteString("### Breakdown\n\n| Signal | Group | Points | Weight |\n|---|---|---|---|\n")
	for _, s := range res.Breakdown {
		fmt.Fprintf(&sb, "| %s | %s | %.1f | %.0f |\n", s.Name, s.Group, s.Points, s.Weight)
	}
	fmt.Fprintf(&sb, "| Commercial adjustment | | %s | |\n\n", signed(res.Adjustment))

	sb.WriteString("### Factors\n\n")
	if len(res.Factors) == 0 {
		sb.WriteString("_No factors._\n")
		return sb.String()
	}
	for _, f := range res.Factors {
		fmt.Fprintf(&sb, "- **%s** (%s)\n", f.Label, signed(f.Impact))
	}
	return sb.String()
}

func bucketIcon(b account.Bucket) string {
	switch b {
	case account.BucketGreen:
		return ":green_circle:"
	case account.BucketAmber:
		return ":orange_circle:"
	default:
		return ":red_circle:"
	}
}
