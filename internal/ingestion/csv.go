package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/healthscope/healthscope/pkg/account"
)

// ErrInvalidCSV is returned when an upload cannot be read as an account CSV
// at all, as opposed to individual rows failing.
var ErrInvalidCSV = errors.New("invalid csv")

// RequiredColumns must be present in the header of every upload.
var RequiredColumns = []string{"name", "arr", "segment"}

// csvRecord mirrors the upload columns. Values stay text so that one bad
// cell is reported against its row instead of aborting the decoder.
type csvRecord struct {
	Name                 string `csv:"name"`
	ARR                  string `csv:"arr"`
	Segment              string `csv:"segment"`
	Industry             string `csv:"industry"`
	Region               string `csv:"region"`
	RenewalDate          string `csv:"renewal_date"`
	Owner                string `csv:"cs_owner"`
	ActiveUsers          string `csv:"active_users"`
	SeatsPurchased       string `csv:"seats_purchased"`
	FeatureAdoption      string `csv:"feature_x_adoption"`
	WeeklyActivePct      string `csv:"weekly_active_pct"`
	TimeToValueDays      string `csv:"time_to_value_days"`
	TicketsLast30d       string `csv:"tickets_last_30d"`
	CriticalTickets90d   string `csv:"critical_tickets_90d"`
	SLABreaches90d       string `csv:"sla_breaches_90d"`
	NPS                  string `csv:"nps"`
	QBRLastDate          string `csv:"qbr_last_date"`
	OnboardingPhase      string `csv:"onboarding_phase"`
	ExpansionOpptyDollar string `csv:"expansion_oppty_dollar"`
	RenewalRisk          string `csv:"renewal_risk"`
}

// Row is one decoded data row. Number counts data rows from 1, excluding
// the header. Err is set when the row could not be turned into an account.
type Row struct {
	Number  int
	Name    string
	Account *account.Account
	Err     error
}

// ParseCSV decodes an account upload. It fails only when the header is
// unreadable or lacks a required column; row problems are reported on the
// returned rows.
func ParseCSV(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(r)
	if errors.Is(err, io.EOF) {
		return nil, eris.Wrap(ErrInvalidCSV, "empty upload")
	}
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidCSV, "read header: %v", err)
	}

	header := make(map[string]bool, len(dec.Header()))
	for _, h := range dec.Header() {
		header[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !header[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrInvalidCSV, "CSV must contain columns: %s (missing %s)",
			strings.Join(RequiredColumns, ", "), strings.Join(missing, ", "))
	}

	var rows []Row
	for n := 1; ; n++ {
		var rec csvRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		row := Row{Number: n, Name: strings.TrimSpace(rec.Name)}
		if err != nil {
			row.Err = err
		} else {
			row.Account, row.Err = rec.toAccount()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fieldParser accumulates conversion problems for one record.
type fieldParser struct {
	problems []string
}

func (p *fieldParser) fail(column, value, kind string) {
	p.problems = append(p.problems, fmt.Sprintf("%s: invalid %s %q", column, kind, value))
}

func (p *fieldParser) number(column, value string, def float64) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(column, value, "number")
		return def
	}
	return v
}

func (p *fieldParser) optNumber(column, value string) *float64 {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := p.number(column, value, 0)
	return &v
}

func (p *fieldParser) integer(column, value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		// Spreadsheets export whole numbers as "12.0".
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			p.fail(column, value, "integer")
			return def
		}
		v = int(f)
	}
	return v
}

func (p *fieldParser) optInteger(column, value string) *int {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := p.integer(column, value, 0)
	return &v
}

func (p *fieldParser) date(column, value string) *account.Date {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := account.ParseDate(value)
	if err != nil {
		p.fail(column, value, "date")
		return nil
	}
	return &d
}

func (p *fieldParser) flag(column, value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "f", "no", "n":
		return false
	case "1", "true", "t", "yes", "y":
		return true
	default:
		p.fail(column, value, "boolean")
		return false
	}
}

func (rec csvRecord) toAccount() (*account.Account, error) {
	var p fieldParser
	a := &account.Account{
		Name:                 strings.TrimSpace(rec.Name),
		Segment:              account.Segment(strings.TrimSpace(rec.Segment)),
		Industry:             strings.TrimSpace(rec.Industry),
		Region:               strings.TrimSpace(rec.Region),
		Owner:                strings.TrimSpace(rec.Owner),
		ARR:                  p.number("arr", rec.ARR, 0),
		RenewalDate:          p.date("renewal_date", rec.RenewalDate),
		ExpansionOpptyDollar: p.number("expansion_oppty_dollar", rec.ExpansionOpptyDollar, 0),
		RenewalRisk:          account.RenewalRisk(strings.TrimSpace(rec.RenewalRisk)),
		ActiveUsers:          p.integer("active_users", rec.ActiveUsers, 0),
		SeatsPurchased:       p.integer("seats_purchased", rec.SeatsPurchased, 1),
		FeatureAdoption:      p.number("feature_x_adoption", rec.FeatureAdoption, 0),
		WeeklyActivePct:      p.number("weekly_active_pct", rec.WeeklyActivePct, 0),
		TimeToValueDays:      p.optInteger("time_to_value_days", rec.TimeToValueDays),
		TicketsLast30d:       p.integer("tickets_last_30d", rec.TicketsLast30d, 0),
		CriticalTickets90d:   p.integer("critical_tickets_90d", rec.CriticalTickets90d, 0),
		SLABreaches90d:       p.integer("sla_breaches_90d", rec.SLABreaches90d, 0),
		NPS:                  p.optNumber("nps", rec.NPS),
		QBRLastDate:          p.date("qbr_last_date", rec.QBRLastDate),
		OnboardingPhase:      p.flag("onboarding_phase", rec.OnboardingPhase),
	}
	if strings.TrimSpace(rec.ARR) == "" {
		p.problems = append(p.problems, "arr is required")
	}
	if len(p.problems) > 0 {
		return nil, eris.Wrap(account.ErrInvalid, strings.Join(p.problems, "; "))
	}
	return a, nil
}
