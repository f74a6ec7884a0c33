// Package export renders buyer-group responses as JSON, CSV, XLSX or an
// aligned text table.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatTable Format = "table"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatTable:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want json, csv, xlsx or table)", s)
	}
}

// Row is one member flattened for tabular output.
type Row struct {
	RunID        string  `csv:"run_id"`
	CompanyID    string  `csv:"company_id"`
	Company      string  `csv:"company"`
	Domain       string  `csv:"domain,omitempty"`
	PersonID     string  `csv:"person_id"`
	Name         string  `csv:"name"`
	Title        string  `csv:"title,omitempty"`
	Department   string  `csv:"department,omitempty"`
	Seniority    string  `csv:"seniority,omitempty"`
	Role         string  `csv:"role"`
	Confidence   float64 `csv:"confidence"`
	Authority    float64 `csv:"authority"`
	Email        string  `csv:"email,omitempty"`
	EmailSource  string  `csv:"email_source,omitempty"`
	Phone        string  `csv:"phone,omitempty"`
	LinkedInURL  string  `csv:"linkedin_url,omitempty"`
	Verification string  `csv:"verification"`
	ManualReview bool    `csv:"manual_review"`
	Rationale    string  `csv:"rationale,omitempty"`
}

// Rows flattens the members of every response in order.
func Rows(responses ...*model.Response) []Row {
	var rows []Row
	for _, r := range responses {
		if r == nil || r.BuyerGroup == nil {
			continue
		}
		for _, m := range r.BuyerGroup.Members {
			rows = append(rows, Row{
				RunID:        r.RunID,
				CompanyID:    r.Company.ID,
				Company:      r.Company.Name,
				Domain:       r.Company.Domain,
				PersonID:     m.Person.ID,
				Name:         m.Person.Name,
				Title:        m.Person.Title,
				Department:   m.Person.Department,
				Seniority:    m.Person.Seniority,
				Role:         string(m.Role),
				Confidence:   round(m.Confidence),
				Authority:    round(m.Authority),
				Email:        m.Contact.Email,
				EmailSource:  m.Contact.EmailSource,
				Phone:        m.Contact.Phone,
				LinkedInURL:  m.Person.LinkedInURL,
				Verification: string(m.Verification),
				ManualReview: m.ManualReview,
				Rationale:    m.Rationale,
			})
		}
	}
	return rows
}

// Write encodes responses to w in the given format. A single response is
// written as a JSON object, several as an array.
func Write(w io.Writer, format Format, responses ...*model.Response) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, responses...)
	case FormatCSV:
		return WriteCSV(w, Rows(responses...))
	case FormatXLSX:
		return WriteXLSX(w, responses...)
	case FormatTable:
		return WriteTable(w, responses...)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteJSON writes indented JSON.
func WriteJSON(w io.Writer, responses ...*model.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	var v any = responses
	if len(responses) == 1 {
		v = responses[0]
	}
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

func round(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
