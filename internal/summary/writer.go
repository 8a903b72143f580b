// Package summary persists sweep output: the per-point top-rule artifacts, the
// consolidated summary table (CSV, optionally XLSX) and a YAML run manifest.
//
// Every file is written atomically: content goes to a temporary file in the
// destination directory which is then renamed over the target, so readers never
// observe a partially written artifact.
package summary

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/rulesweep/internal/models"
)

// RulesDir is the artifact sub-directory holding top-rule files.
const RulesDir = "rules"

// RuleColumns is the header of every top-rule artifact.
var RuleColumns = []string{
	"antecedents",
	"consequents",
	"antecedent_support",
	"consequent_support",
	"support",
	"confidence",
	"lift",
	"leverage",
	"conviction",
	"rule",
}

// Options configures a Writer.
type Options struct {
	XLSX            bool // also write an .xlsx twin of every summary table
	FilePermissions os.FileMode
	DirPermissions  os.FileMode
}

// Writer writes artifacts below an output directory.
type Writer struct {
	dir      string
	xlsx     bool
	filePerm os.FileMode
	dirPerm  os.FileMode
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, opts Options) *Writer {
	if opts.FilePermissions == 0 {
		opts.FilePermissions = 0o644
	}
	if opts.DirPermissions == 0 {
		opts.DirPermissions = 0o755
	}
	return &Writer{
		dir:      dir,
		xlsx:     opts.XLSX,
		filePerm: opts.FilePermissions,
		dirPerm:  opts.DirPermissions,
	}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// RulesPath returns the artifact path for a sweep point name.
func (w *Writer) RulesPath(point string) string {
	return filepath.Join(w.dir, RulesDir, "top_rules_"+point+".csv")
}

// WriteRules persists rules for one sweep point. An empty rule set still
// produces a file holding only the header row.
func (w *Writer) WriteRules(point string, rules models.RuleSet) (string, error) {
	rows := make([][]string, len(rules))
	for i, r := range rules {
		rows[i] = []string{
			strings.Join(r.Antecedent, ", "),
			strings.Join(r.Consequent, ", "),
			FormatFloat(r.AntecedentSupport),
			FormatFloat(r.ConsequentSupport),
			FormatFloat(r.Support),
			FormatFloat(r.Confidence),
			FormatFloat(r.Lift),
			FormatFloat(r.Leverage),
			FormatFloat(r.Conviction),
			r.Description(),
		}
	}
	path := w.RulesPath(point)
	if err := w.writeCSV(path, RuleColumns, rows); err != nil {
		return "", eris.Wrapf(err, "summary: write rules %s", point)
	}
	return path, nil
}

func (w *Writer) writeCSV(path string, header []string, rows [][]string) error {
	return w.atomicWrite(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return eris.Wrap(err, "write header")
		}
		if err := cw.WriteAll(rows); err != nil {
			return eris.Wrap(err, "write rows")
		}
		return nil
	})
}

func (w *Writer) writeXLSX(path, sheetName string, header []string, rows [][]models.Field) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}
	hr := sheet.AddRow()
	for _, name := range header {
		hr.AddCell().SetString(name)
	}
	for _, fields := range rows {
		row := sheet.AddRow()
		for _, field := range fields {
			cell := row.AddCell()
			switch {
			case field.Integer:
				cell.SetInt(int(field.Value))
			case math.IsNaN(field.Value) || math.IsInf(field.Value, 0):
				cell.SetString("")
			default:
				cell.SetFloat(field.Value)
			}
		}
	}
	return w.atomicWrite(path, func(out io.Writer) error {
		return eris.Wrap(f.Write(out), "write workbook")
	})
}

// WriteManifest persists m as YAML next to the summary.
func (w *Writer) WriteManifest(name string, m Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "summary: marshal manifest")
	}
	path := filepath.Join(w.dir, name)
	err = w.atomicWrite(path, func(out io.Writer) error {
		_, werr := out.Write(data)
		return werr
	})
	if err != nil {
		return "", eris.Wrap(err, "summary: write manifest")
	}
	return path, nil
}

func (w *Writer) atomicWrite(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.dirPerm); err != nil {
		return eris.Wrap(err, "create output directory")
	}

	// Write to temporary file first (atomic write)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(w.filePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return eris.Wrap(err, "rename temp file")
	}
	return nil
}

// FormatFloat renders v the way Python's repr does for floats: shortest
// round-trip digits, a trailing ".0" for integral values, exponent notation
// outside [1e-4, 1e16), "inf" for infinities. NaN renders as an empty string.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// PointName renders thresholds as an artifact-safe token, e.g.
// (0.025, 0.2, 1.0) -> "s0p025_c0p2_l1p0".
func PointName(prefixes string, values ...float64) string {
	parts := make([]string, 0, len(values))
	for i, v := range values {
		p := ""
		if i < len(prefixes) {
			p = string(prefixes[i])
		}
		parts = append(parts, p+FormatFloat(v))
	}
	return strings.ReplaceAll(strings.Join(parts, "_"), ".", "p")
}
