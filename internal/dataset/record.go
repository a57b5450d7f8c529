// Package dataset implements the read-optimized in-memory dataset at the
// heart of the mirror: parsing the upstream CSV into typed records, building
// derived query views from them, and publishing those views atomically to
// concurrent readers.
//
// The package is organized around three pieces, leaves first:
//
//   - Parse converts raw CSV bytes into a validated record sequence.
//   - Build turns a record sequence into one immutable ViewSet.
//   - Store holds the currently published Snapshot and swaps it on refresh
//     without ever blocking readers.
package dataset

import (
	"encoding/json"
	"fmt"
)

// Category distinguishes the kinds of network node in the upstream dataset.
// It is kept as a small integer so the compact map encoding stays small.
type Category int

const (
	CategoryCRO Category = 0
	CategoryCNO Category = 1
)

// ParseCategory maps an upstream TIPO value to a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "CRO":
		return CategoryCRO, true
	case "CNO":
		return CategoryCNO, true
	default:
		return 0, false
	}
}

// String returns the upstream name of the category.
func (c Category) String() string {
	switch c {
	case CategoryCRO:
		return "CRO"
	case CategoryCNO:
		return "CNO"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// MarshalJSON encodes the category under its upstream name, so full record
// payloads read naturally ("CRO"/"CNO"). The compact map encoding bypasses
// this and uses the raw integer.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Attributes are the descriptive fields carried only in the detail and full
// listing views, never in the compact map view. JSON names mirror the
// upstream CSV column headers.
type Attributes struct {
	Province         string `json:"PROVINCIA"`
	Municipality     string `json:"COMUNE"`
	ACLCode          string `json:"CODICE_ACL"`
	ExchangeCode     string `json:"CENTRALE_TX_DI_RIF"`
	ElementID        string `json:"ID_ELEMENTO"`
	CROType          string `json:"TIPOLOGIA_CRO,omitempty"`
	Status           string `json:"STATO"`
	AvailabilityDate string `json:"DATA_DISPONIBILITA"`
	Address          string `json:"INDIRIZZO"`
	PublicationDate  string `json:"DATA_PUBBLICAZIONE"`
}

// Record is one network node entry.
//
// ID is a dense non-negative integer assigned by the parser in first-seen
// order. It is unique within one snapshot generation and doubles as the
// lookup key and the position in the ordered list views. A refresh may
// assign different IDs to the same upstream entity; no identity is promised
// across generations.
type Record struct {
	ID       int      `json:"id"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Category Category `json:"type"`
	Attributes
}
