package dataset

import (
	"errors"
	"strings"
	"testing"
)

const testHeader = "PROVINCIA;COMUNE;LATITUDINE;LONGITUDINE;CODICE_ACL;CENTRALE_TX_DI_RIF;ID_ELEMENTO;TIPO;TIPOLOGIA_CRO;STATO;DATA_DISPONIBILITA;INDIRIZZO;DATA_PUBBLICAZIONE"

func csvInput(rows ...string) []byte {
	return []byte(testHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func TestParse_AssignsIDsInInputOrder(t *testing.T) {
	raw := csvInput(
		"PADOVA;ABANO TERME;45.359859;11.780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA ARMANDO PILLON 15;20220526",
		"NAPOLI;ACERRA;40.938049;14.371440;08001A;NAPOACER;NAPOACE001C;CNO;;PROGRAMMATO;20240101;VIA ROMA 1;20230901",
		"PADOVA;ABANO TERME;45.367344;11.794115;04901I;PADOITAR;PADOITA003B;CRO;STANDARD;DISPONIBILE;20220725;VIA DELLE TERME 3;20220526",
	)

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}

	for i, rec := range res.Records {
		if rec.ID != i {
			t.Errorf("record %d has ID %d", i, rec.ID)
		}
	}

	first := res.Records[0]
	if first.Lat != 45.359859 || first.Lon != 11.780167 {
		t.Errorf("record 0 coords = (%v, %v)", first.Lat, first.Lon)
	}
	if first.Category != CategoryCRO {
		t.Errorf("record 0 category = %v, want CRO", first.Category)
	}
	if first.Province != "PADOVA" || first.Address != "VIA ARMANDO PILLON 15" {
		t.Errorf("record 0 attributes = %+v", first.Attributes)
	}
	if res.Records[1].Category != CategoryCNO {
		t.Errorf("record 1 category = %v, want CNO", res.Records[1].Category)
	}
}

func TestParse_SkipsInvalidRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{
			name: "missing latitude",
			row:  "PADOVA;ABANO TERME;;11.780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
		},
		{
			name: "unparseable longitude",
			row:  "PADOVA;ABANO TERME;45.359859;east;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
		},
		{
			name: "non-finite latitude",
			row:  "PADOVA;ABANO TERME;NaN;11.780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
		},
		{
			name: "unknown category",
			row:  "PADOVA;ABANO TERME;45.359859;11.780167;04901I;PADOITAR;PADOITA002B;ARMADIO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
		},
		{
			name: "row too short for coordinates",
			row:  "PADOVA;ABANO TERME",
		},
	}

	valid := "NAPOLI;ACERRA;40.938049;14.371440;08001A;NAPOACER;NAPOACE001C;CNO;;PROGRAMMATO;20240101;VIA ROMA 1;20230901"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(csvInput(tt.row, valid))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if res.Skipped != 1 {
				t.Errorf("Skipped = %d, want 1", res.Skipped)
			}
			if len(res.Records) != 1 {
				t.Fatalf("got %d records, want 1", len(res.Records))
			}
			// The surviving row still gets the dense ID 0.
			if res.Records[0].ID != 0 {
				t.Errorf("surviving record ID = %d, want 0", res.Records[0].ID)
			}
		})
	}
}

func TestParse_HeaderSchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{
			name: "missing TIPO column",
			raw:  []byte("PROVINCIA;LATITUDINE;LONGITUDINE\nPADOVA;45.0;11.0\n"),
		},
		{
			name: "missing coordinates",
			raw:  []byte("PROVINCIA;TIPO\nPADOVA;CRO\n"),
		},
		{
			name: "empty input",
			raw:  []byte(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want *ParseError", err)
			}
		})
	}
}

func TestParse_DecimalCommaCoordinates(t *testing.T) {
	raw := csvInput("PADOVA;ABANO TERME;45,359859;11,780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526")

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.Records[0].Lat != 45.359859 {
		t.Errorf("Lat = %v, want 45.359859", res.Records[0].Lat)
	}
}

func TestParse_ByteOrderMark(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, csvInput(
		"PADOVA;ABANO TERME;45.359859;11.780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
	)...)

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want 1", len(res.Records))
	}
}

func TestParse_SkipsEmptyRowsWithoutCounting(t *testing.T) {
	raw := csvInput(
		"PADOVA;ABANO TERME;45.359859;11.780167;04901I;PADOITAR;PADOITA002B;CRO;STANDARD;DISPONIBILE;20220725;VIA PILLON 15;20220526",
		";;;;;;;;;;;;",
	)

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0 (empty rows are not validation failures)", res.Skipped)
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want 1", len(res.Records))
	}
}
