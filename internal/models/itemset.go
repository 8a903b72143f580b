package models

import (
	"errors"
	"time"
)

// Transaction is one raw row of the cleaned retail dataset.
type Transaction struct {
	InvoiceNo   string    `json:"invoice_no"`
	Item        string    `json:"item"`
	Quantity    float64   `json:"quantity"`
	InvoiceDate time.Time `json:"invoice_date"`
}

// Itemset is a set of items (sorted) with its support.
type Itemset struct {
	Items   []string `json:"itemsets"`
	Support float64  `json:"support"`
}

// Itemsets is a frequent itemset collection for one support threshold.
type Itemsets []Itemset

// Validate checks that all itemset fields are valid
func (s *Itemset) Validate() error {
	if len(s.Items) == 0 {
		return errors.New("itemset must not be empty")
	}
	if !inUnit(s.Support) {
		return errors.New("support must be between 0.0 and 1.0")
	}
	return nil
}

// CountBySize splits the collection into single items and multi-item itemsets.
func (sets Itemsets) CountBySize() (singles, multi int) {
	for _, s := range sets {
		if len(s.Items) == 1 {
			singles++
		} else if len(s.Items) > 1 {
			multi++
		}
	}
	return singles, multi
}
