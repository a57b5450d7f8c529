package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func zipArchive(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip member %s: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("writing zip member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDataset(t *testing.T) {
	csvContent := []byte("LATITUDINE;LONGITUDINE;TIPO\n45.0;7.0;CRO\n")

	tests := []struct {
		name     string
		members  map[string][]byte
		wantFile string
		wantDate time.Time
		wantErr  error
	}{
		{
			name:     "dated CSV member",
			members:  map[string][]byte{"export_20260216.csv": csvContent},
			wantFile: "export_20260216.csv",
			wantDate: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "skips non-CSV and undated members",
			members: map[string][]byte{
				"readme.txt":              []byte("hi"),
				"export.csv":              []byte("undated"),
				"dir/export_20251231.csv": csvContent,
			},
			wantFile: "export_20251231.csv",
			wantDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "no usable member",
			members: map[string][]byte{"readme.txt": []byte("hi")},
			wantErr: ErrNoDataset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := ExtractDataset(zipArchive(t, tt.members))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractDataset() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractDataset() error = %v", err)
			}
			if payload.Filename != tt.wantFile {
				t.Errorf("Filename = %q, want %q", payload.Filename, tt.wantFile)
			}
			if !payload.DatasetDate.Equal(tt.wantDate) {
				t.Errorf("DatasetDate = %v, want %v", payload.DatasetDate, tt.wantDate)
			}
			if !bytes.Equal(payload.CSV, csvContent) {
				t.Errorf("CSV = %q, want %q", payload.CSV, csvContent)
			}
		})
	}
}

func TestExtractDataset_NotAZip(t *testing.T) {
	if _, err := ExtractDataset([]byte("definitely not a zip")); err == nil {
		t.Fatal("ExtractDataset() expected error for malformed archive")
	}
}

func TestDatasetDateFromName(t *testing.T) {
	tests := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{"export_20260216.csv", time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), true},
		{"20220725_nodes.csv", time.Date(2022, 7, 25, 0, 0, 0, 0, time.UTC), true},
		{"export.csv", time.Time{}, false},
		{"export_20261345.csv", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := DatasetDateFromName(tt.name)
		if ok != tt.ok {
			t.Errorf("DatasetDateFromName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("DatasetDateFromName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClientFetch(t *testing.T) {
	csvContent := []byte("LATITUDINE;LONGITUDINE;TIPO\n45.0;7.0;CRO\n")
	archive := zipArchive(t, map[string][]byte{"export_20260216.csv": csvContent})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request sent without User-Agent")
		}
		w.Write(archive)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	payload, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if payload.Filename != "export_20260216.csv" {
		t.Errorf("Filename = %q", payload.Filename)
	}
	if payload.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
	if !bytes.Equal(payload.CSV, csvContent) {
		t.Errorf("CSV = %q", payload.CSV)
	}
}

func TestClientFetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() expected error for non-200 response")
	}
}
