package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// Sheet names in the workbook.
const (
	MembersSheet = "Buyer Group"
	SummarySheet = "Summary"
)

var memberHeader = []string{
	"Company", "Name", "Title", "Department", "Seniority", "Role",
	"Confidence", "Authority", "Email", "Phone", "LinkedIn", "Verification", "Manual Review", "Rationale",
}

var summaryHeader = []string{
	"Run", "Company", "Domain", "Industry", "Employees", "Members", "Verified",
	"Manual Reviews", "Roles Covered", "Roles Missing", "Cohesion", "Code", "Cached",
}

// WriteXLSX writes a workbook with one member sheet and one summary sheet.
func WriteXLSX(w io.Writer, responses ...*model.Response) error {
	f := xlsx.NewFile()

	members, err := f.AddSheet(MembersSheet)
	if err != nil {
		return eris.Wrap(err, "export: add member sheet")
	}
	addStrings(members.AddRow(), memberHeader...)
	for _, r := range Rows(responses...) {
		row := members.AddRow()
		addStrings(row, r.Company, r.Name, r.Title, r.Department, r.Seniority, r.Role)
		row.AddCell().SetFloat(r.Confidence)
		row.AddCell().SetFloat(r.Authority)
		addStrings(row, r.Email, r.Phone, r.LinkedInURL, r.Verification)
		row.AddCell().SetBool(r.ManualReview)
		addStrings(row, r.Rationale)
	}

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addStrings(summary.AddRow(), summaryHeader...)
	for _, r := range responses {
		if r == nil {
			continue
		}
		row := summary.AddRow()
		addStrings(row, r.RunID, r.Company.Name, r.Company.Domain, r.Company.Industry, r.Summary.EmployeeBucket)
		members, cohesion := 0, 0.0
		if r.BuyerGroup != nil {
			members, cohesion = len(r.BuyerGroup.Members), r.BuyerGroup.CohesionScore
		}
		row.AddCell().SetInt(members)
		row.AddCell().SetInt(r.Summary.VerifiedCount)
		row.AddCell().SetInt(r.Summary.ManualReviews)
		addStrings(row, joinRoles(r.Summary.RolesCovered), joinRoles(r.Summary.RolesMissing))
		row.AddCell().SetFloat(round(cohesion))
		addStrings(row, string(r.Code))
		row.AddCell().SetBool(r.Cached)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func joinRoles(roles []model.Role) string {
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, ", ")
}
