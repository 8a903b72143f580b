// Package basket turns cleaned retail transaction rows into the boolean
// transaction x item matrix consumed by the rule miner.
//
// Loading is strict: a missing dataset file or a missing required column is a
// fatal error reported before any sweep starts.
package basket

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/rewired-gh/rulesweep/internal/models"
)

var (
	// ErrDataNotFound is returned when the dataset file does not exist.
	ErrDataNotFound = eris.New("cleaned data not found")
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = eris.New("required column missing")
)

// DefaultDateLayouts are tried in order when parsing the date column.
var DefaultDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
}

// Columns names the dataset columns. Quantity is optional.
type Columns struct {
	Invoice     string
	Item        string
	Quantity    string
	Date        string
	DateLayouts []string
}

// Load reads transaction rows from a CSV file with a header row.
func Load(ctx context.Context, path string, cols Columns) ([]models.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrDataNotFound, "basket: %s", path)
		}
		return nil, eris.Wrap(err, "basket: open dataset")
	}
	defer f.Close()

	return Read(ctx, f, cols)
}

// Read parses transaction rows from r.
func Read(ctx context.Context, r io.Reader, cols Columns) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Wrap(ErrMissingColumn, "basket: empty dataset")
	}
	if err != nil {
		return nil, eris.Wrap(err, "basket: read header")
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	lookup := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		i, ok := pos[name]
		if !ok {
			if required {
				return -1, eris.Wrapf(ErrMissingColumn, "basket: column %q", name)
			}
			return -1, nil
		}
		return i, nil
	}

	invoiceIdx, err := lookup(cols.Invoice, true)
	if err != nil {
		return nil, err
	}
	itemIdx, err := lookup(cols.Item, true)
	if err != nil {
		return nil, err
	}
	dateIdx, err := lookup(cols.Date, true)
	if err != nil {
		return nil, err
	}
	qtyIdx, err := lookup(cols.Quantity, false)
	if err != nil {
		return nil, err
	}

	layouts := cols.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}

	var txs []models.Transaction
	line := 1
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "basket: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "basket: read line %d", line)
		}

		item := field(record, itemIdx)
		if item == "" {
			continue
		}
		when, err := parseDate(field(record, dateIdx), layouts)
		if err != nil {
			return nil, eris.Wrapf(err, "basket: line %d", line)
		}
		qty := 1.0
		if qtyIdx >= 0 {
			qty, err = strconv.ParseFloat(field(record, qtyIdx), 64)
			if err != nil {
				return nil, eris.Wrapf(err, "basket: line %d: parse quantity", line)
			}
		}

		txs = append(txs, models.Transaction{
			InvoiceNo:   field(record, invoiceIdx),
			Item:        norm.NFC.String(item),
			Quantity:    qty,
			InvoiceDate: when,
		})
	}
	return txs, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseDate(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("parse date %q", s)
}

// Basket holds per-invoice item quantities, invoices in first-seen order.
type Basket struct {
	invoices []string
	lines    map[string]map[string]float64
}

// CreateBasket groups transaction rows per invoice, summing quantities per item.
func CreateBasket(txs []models.Transaction) *Basket {
	b := &Basket{lines: make(map[string]map[string]float64)}
	for _, tx := range txs {
		items, ok := b.lines[tx.InvoiceNo]
		if !ok {
			items = make(map[string]float64)
			b.lines[tx.InvoiceNo] = items
			b.invoices = append(b.invoices, tx.InvoiceNo)
		}
		items[tx.Item] += tx.Quantity
	}
	return b
}

// Len returns the number of invoices.
func (b *Basket) Len() int { return len(b.invoices) }

// Encode converts the basket into the boolean matrix. An item is present in a
// transaction when its summed quantity is positive.
func (b *Basket) Encode() *Matrix {
	transactions := make([][]string, len(b.invoices))
	for i, inv := range b.invoices {
		for item, qty := range b.lines[inv] {
			if qty > 0 {
				transactions[i] = append(transactions[i], item)
			}
		}
	}
	return NewMatrix(transactions)
}
