package surface

import (
	"encoding/json"
	"io"

	"github.com/healthscope/healthscope/pkg/account"
)

// JSONRenderer marshals results to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, report *Report) error {
	return encode(w, report)
}

func (r *JSONRenderer) RenderHistory(w io.Writer, accountName string, history []account.HealthSnapshot) error {
	if history == nil {
		history = []account.HealthSnapshot{}
	}
	return encode(w, struct {
		Account   string                   `json:"account"`
		Snapshots []account.HealthSnapshot `json:"snapshots"`
	}{accountName, history})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
