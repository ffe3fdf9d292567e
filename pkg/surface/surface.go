// Package surface renders account health results for terminals, JSON
// consumers and markdown destinations such as CRM notes.
package surface

import (
	"io"

	"github.com/rotisserie/eris"

	"github.com/healthscope/healthscope/pkg/account"
	"github.com/healthscope/healthscope/pkg/scoring"
)

// Report is one account's scoring result prepared for rendering.
type Report struct {
	Account string         `json:"account"`
	Result  scoring.Result `json:"result"`
}

// Renderer produces formatted output from health results.
type Renderer interface {
	// Render writes one account's score and factors.
	Render(w io.Writer, report *Report) error
	// RenderHistory writes an account's snapshots, most recent first.
	RenderHistory(w io.Writer, accountName string, history []account.HealthSnapshot) error
}

// ForFormat returns the renderer for an output format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, eris.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}
