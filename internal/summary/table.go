package summary

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/stats"
)

// ErrAlreadyPersisted is returned when a table is persisted a second time.
var ErrAlreadyPersisted = eris.New("summary table already persisted")

// Table accumulates one record per sweep point in the order they are appended.
type Table[R models.Record] struct {
	rows      []R
	persisted bool
}

// NewTable creates an empty table.
func NewTable[R models.Record]() *Table[R] {
	return &Table[R]{}
}

// Append adds a row at the end of the table.
func (t *Table[R]) Append(r R) {
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table[R]) Len() int { return len(t.rows) }

// Rows returns a copy of the rows.
func (t *Table[R]) Rows() []R {
	out := make([]R, len(t.rows))
	copy(out, t.rows)
	return out
}

// SortStable reorders rows with a stable sort.
func (t *Table[R]) SortStable(less func(a, b R) bool) {
	sort.SliceStable(t.rows, func(i, j int) bool { return less(t.rows[i], t.rows[j]) })
}

// Header returns the column names.
func (t *Table[R]) Header() []string {
	var zero R
	fields := zero.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	return header
}

// Records renders every row as CSV cells. NaN renders as an empty cell.
func (t *Table[R]) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		fields := r.Fields()
		cells := make([]string, len(fields))
		for j, f := range fields {
			if f.Integer {
				cells[j] = strconv.FormatInt(int64(f.Value), 10)
			} else {
				cells[j] = FormatFloat(f.Value)
			}
		}
		out[i] = cells
	}
	return out
}

// Persist writes the table as <dir>/<name>.csv, plus <name>.xlsx when the
// writer has XLSX enabled. A table is persisted at most once.
func (t *Table[R]) Persist(w *Writer, name string) ([]string, error) {
	if t.persisted {
		return nil, eris.Wrapf(ErrAlreadyPersisted, "summary: %s", name)
	}

	csvPath := filepath.Join(w.dir, name+".csv")
	if err := w.writeCSV(csvPath, t.Header(), t.Records()); err != nil {
		return nil, eris.Wrapf(err, "summary: write %s", csvPath)
	}
	paths := []string{csvPath}

	if w.xlsx {
		fields := make([][]models.Field, len(t.rows))
		for i, r := range t.rows {
			fields[i] = r.Fields()
		}
		xlsxPath := filepath.Join(w.dir, name+".xlsx")
		if err := w.writeXLSX(xlsxPath, sheetName(name), t.Header(), fields); err != nil {
			return nil, eris.Wrapf(err, "summary: write %s", xlsxPath)
		}
		paths = append(paths, xlsxPath)
	}

	t.persisted = true
	return paths, nil
}

// sheet names are capped at 31 characters
func sheetName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// DegradedPoint records a sweep point whose mining or generation failed.
type DegradedPoint struct {
	Point  string `yaml:"point"`
	Reason string `yaml:"reason"`
}

// PointDetail holds the full rule statistics and the co-occurrence clusters
// of one sensitivity point. Statistics of a point without rules are NaN.
type PointDetail struct {
	Point      string        `yaml:"point"`
	MinSupport float64       `yaml:"min_support"`
	Support    stats.Summary `yaml:"support"`
	Confidence stats.Summary `yaml:"confidence"`
	Lift       stats.Summary `yaml:"lift"`
	Clusters   [][]string    `yaml:"clusters,omitempty"`
}

// Manifest describes one driver invocation.
type Manifest struct {
	RunID        string                 `yaml:"run_id"`
	Mode         string                 `yaml:"mode"`
	Dataset      string                 `yaml:"dataset,omitempty"`
	Transactions int                    `yaml:"transactions"`
	Items        int                    `yaml:"items"`
	Parameters   map[string]interface{} `yaml:"parameters"`
	Points       int                    `yaml:"points"`
	Degraded     []DegradedPoint        `yaml:"degraded,omitempty"`
	Details      []PointDetail          `yaml:"details,omitempty"`
	Artifacts    []string               `yaml:"artifacts"`
	StartedAt    time.Time              `yaml:"started_at"`
	FinishedAt   time.Time              `yaml:"finished_at"`
}
