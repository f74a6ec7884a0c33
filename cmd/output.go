package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/export"
	"github.com/sells-group/buyer-group-cli/internal/model"
)

// writeOutput writes responses in format to path, or to stdout when path is
// empty. XLSX output requires a path.
func writeOutput(stdout io.Writer, format, path string, responses ...*model.Response) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if path == "" {
		if f == export.FormatXLSX {
			return eris.New("xlsx output requires --output")
		}
		return export.Write(stdout, f, responses...)
	}

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.Write(out, f, responses...); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrapf(out.Close(), "close %s", path)
}
