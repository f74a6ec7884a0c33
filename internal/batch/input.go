// Package batch reads buyer-group requests from CSV or XLSX files and runs
// them with bounded concurrency.
package batch

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// InputRow is one line of a batch file. TargetRoles is separated by ';'.
type InputRow struct {
	CompanyName      string  `csv:"company_name"`
	Domain           string  `csv:"domain,omitempty"`
	ProductName      string  `csv:"product_name,omitempty"`
	SolutionCategory string  `csv:"solution_category,omitempty"`
	TargetRoles      string  `csv:"target_roles,omitempty"`
	Industry         string  `csv:"industry,omitempty"`
	MaxGroupSize     int     `csv:"max_group_size,omitempty"`
	MinConfidence    float64 `csv:"min_confidence,omitempty"`
}

// Request converts the row, filling empty seller fields from defaults.
func (r InputRow) Request(defaults model.SellerProfile) model.Request {
	profile := model.SellerProfile{
		ProductName:      firstNonEmpty(r.ProductName, defaults.ProductName),
		SolutionCategory: firstNonEmpty(r.SolutionCategory, defaults.SolutionCategory),
		Industry:         firstNonEmpty(r.Industry, defaults.Industry),
		TargetRoles:      splitRoles(r.TargetRoles),
	}
	if len(profile.TargetRoles) == 0 {
		profile.TargetRoles = defaults.TargetRoles
	}
	return model.Request{
		CompanyName:   strings.TrimSpace(r.CompanyName),
		Domain:        strings.TrimSpace(r.Domain),
		SellerProfile: profile,
		Options:       model.Options{MaxGroupSize: r.MaxGroupSize, MinConfidence: r.MinConfidence},
	}
}

// ReadFile reads requests from a .csv or .xlsx file. Rows without a company
// name are skipped.
func ReadFile(path string, defaults model.SellerProfile) ([]model.Request, error) {
	var rows []InputRow
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(f)
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.Request, 0, len(rows))
	for _, r := range rows {
		req := r.Request(defaults)
		if req.CompanyName == "" {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// ReadCSV decodes rows from CSV with a header line.
func ReadCSV(r io.Reader) ([]InputRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	return decode(cr)
}

func readXLSX(path string) ([]InputRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("batch: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	width := 0
	for i, row := range sheet.Rows {
		if i == 0 {
			width = len(row.Cells)
		}
		// Rows are padded or cut to the header width; XLSX drops trailing
		// empty cells.
		cells := make([]string, width)
		for j, cell := range row.Cells {
			if j < width {
				cells[j] = strings.TrimSpace(cell.String())
			}
		}
		rows = append(rows, cells)
	}
	return decode(&sliceReader{rows: rows})
}

type recordReader interface {
	Read() ([]string, error)
}

func decode(r recordReader) ([]InputRow, error) {
	dec, err := csvutil.NewDecoder(&headerNormalizer{r: r})
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	var rows []InputRow
	for {
		var row InputRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: decode row %d", len(rows)+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerNormalizer lower-cases the header record and maps spaces to
// underscores so "Company Name" matches company_name.
type headerNormalizer struct {
	r    recordReader
	done bool
}

func (h *headerNormalizer) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil || h.done {
		return rec, err
	}
	h.done = true
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "_")
	}
	return out, nil
}

// sliceReader serves pre-read rows with the csv.Reader Read contract.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func splitRoles(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
