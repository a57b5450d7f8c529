package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Upstream CSV column headers. LATITUDINE, LONGITUDINE and TIPO are
// required; a header missing any of them is structural corruption and fails
// the whole parse. The rest are carried as record attributes when present.
const (
	colProvince         = "PROVINCIA"
	colMunicipality     = "COMUNE"
	colLatitude         = "LATITUDINE"
	colLongitude        = "LONGITUDINE"
	colACLCode          = "CODICE_ACL"
	colExchangeCode     = "CENTRALE_TX_DI_RIF"
	colElementID        = "ID_ELEMENTO"
	colCategory         = "TIPO"
	colCROType          = "TIPOLOGIA_CRO"
	colStatus           = "STATO"
	colAvailabilityDate = "DATA_DISPONIBILITA"
	colAddress          = "INDIRIZZO"
	colPublicationDate  = "DATA_PUBBLICAZIONE"
)

var requiredColumns = []string{colLatitude, colLongitude, colCategory}

// ParseResult is the outcome of one successful parse: the ordered record
// sequence plus a count of rows dropped by per-row validation.
type ParseResult struct {
	Records []Record
	Skipped int
}

// Parse converts raw semicolon-delimited CSV bytes into a validated record
// sequence. It is a pure transform with no side effects.
//
// Row order is preserved and IDs are assigned as the 0-based position in the
// output sequence. Rows with missing, unparseable or non-finite coordinates,
// or an unknown TIPO, are skipped and counted. Only a header that does not
// match the expected schema fails the parse outright.
func Parse(raw []byte) (*ParseResult, error) {
	// Upstream files occasionally carry a UTF-8 BOM.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = ';'
	// Row-level column count mismatches are recoverable; validate per row.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Reason: "empty input"}
		}
		return nil, &ParseError{Reason: fmt.Sprintf("reading header: %v", err)}
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("header missing required column %s", col)}
		}
	}

	res := &ParseResult{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// encoding/csv only errors here on malformed quoting; treat the
			// row as unrecoverable but keep the rest of the file.
			res.Skipped++
			continue
		}

		if isEmptyRow(row) {
			continue
		}

		rec, ok := buildRecord(row, idx)
		if !ok {
			res.Skipped++
			continue
		}
		rec.ID = len(res.Records)
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

// buildRecord validates one data row and assembles a Record (without ID).
func buildRecord(row []string, idx map[string]int) (Record, bool) {
	lat, ok := parseCoordinate(cell(row, idx, colLatitude))
	if !ok {
		return Record{}, false
	}
	lon, ok := parseCoordinate(cell(row, idx, colLongitude))
	if !ok {
		return Record{}, false
	}
	cat, ok := ParseCategory(cell(row, idx, colCategory))
	if !ok {
		return Record{}, false
	}

	return Record{
		Lat:      lat,
		Lon:      lon,
		Category: cat,
		Attributes: Attributes{
			Province:         cell(row, idx, colProvince),
			Municipality:     cell(row, idx, colMunicipality),
			ACLCode:          cell(row, idx, colACLCode),
			ExchangeCode:     cell(row, idx, colExchangeCode),
			ElementID:        cell(row, idx, colElementID),
			CROType:          cell(row, idx, colCROType),
			Status:           cell(row, idx, colStatus),
			AvailabilityDate: cell(row, idx, colAvailabilityDate),
			Address:          cell(row, idx, colAddress),
			PublicationDate:  cell(row, idx, colPublicationDate),
		},
	}, true
}

// cell returns the trimmed value of the named column, or "" when the column
// is absent from the header or the row is short.
func cell(row []string, idx map[string]int, col string) string {
	pos, ok := idx[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// parseCoordinate parses a required finite coordinate value.
func parseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	// Some upstream exports use a decimal comma.
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
