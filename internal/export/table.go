package export

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// WriteTable prints each buyer group as an aligned table followed by its
// warnings.
func WriteTable(out io.Writer, responses ...*model.Response) error {
	for i, r := range responses {
		if r == nil {
			continue
		}
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		header := r.Company.Name
		if r.Company.Domain != "" {
			header += " (" + r.Company.Domain + ")"
		}
		if r.Cached {
			header += " [cached]"
		}
		_, _ = fmt.Fprintf(out, "%s  run=%s\n", header, r.RunID)
		if r.Code != "" {
			_, _ = fmt.Fprintf(out, "code: %s\n", r.Code)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ROLE\tNAME\tTITLE\tCONF\tEMAIL\tVERIFICATION")
		_, _ = fmt.Fprintln(w, "----\t----\t-----\t----\t-----\t------------")
		for _, row := range Rows(r) {
			verification := row.Verification
			if row.ManualReview {
				verification += " (review)"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
				row.Role, row.Name, row.Title, row.Confidence, row.Email, verification)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, wn := range r.Warnings {
			_, _ = fmt.Fprintf(out, "warning [%s] %s: %s\n", wn.Stage, wn.Code, wn.Message)
		}
	}
	return nil
}

// WriteRuns lists runs one per line.
func WriteRuns(out io.Writer, runs []model.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSTAGE\tCODE\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t----\t-------\t--------")
	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Millisecond).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.Request.CompanyName, r.Stage, r.ErrorCode,
			r.CreatedAt.Format(time.DateTime), dur)
	}
	return w.Flush()
}

// WriteRun prints one run with its stage records.
func WriteRun(out io.Writer, r *model.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Company:\t%s\n", r.Request.CompanyName)
	_, _ = fmt.Fprintf(w, "Stage:\t%s\n", r.Stage)
	if r.ErrorCode != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s %s\n", r.ErrorCode, r.Error)
	}
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "STAGE\tSTATUS\tITEMS\tWARNINGS\tDURATION\tERROR")
	for _, s := range r.Stages {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\t%s\n", s.Stage, s.Status, s.Items, s.Warnings, s.DurationMs, s.Error)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
