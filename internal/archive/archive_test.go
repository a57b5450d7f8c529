package archive

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lmoretti/fibermirror/internal/fetch"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func payloadFor(date time.Time, filename string) *fetch.Payload {
	return &fetch.Payload{
		CSV:         []byte("LATITUDINE;LONGITUDINE;TIPO\n45.0;7.0;CRO\n"),
		Filename:    filename,
		DatasetDate: date,
		FetchedAt:   time.Now().Truncate(time.Second),
	}
}

func TestArchive_EmptyReads(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if _, err := a.Latest(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Latest() error = %v, want ErrEmpty", err)
	}
	if _, err := a.Get(ctx, time.Now()); !errors.Is(err, ErrEmpty) {
		t.Errorf("Get() error = %v, want ErrEmpty", err)
	}
}

func TestArchive_SaveGetRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	date := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	in := payloadFor(date, "export_20260216.csv")
	if err := a.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := a.Get(ctx, date)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(out.CSV, in.CSV) {
		t.Errorf("CSV round-trip mismatch: %q != %q", out.CSV, in.CSV)
	}
	if out.Filename != in.Filename {
		t.Errorf("Filename = %q, want %q", out.Filename, in.Filename)
	}
	if !out.DatasetDate.Equal(date) {
		t.Errorf("DatasetDate = %v, want %v", out.DatasetDate, date)
	}
}

func TestArchive_SaveReplacesSameDate(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	first := payloadFor(date, "first.csv")
	if err := a.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := payloadFor(date, "second.csv")
	second.CSV = []byte("replaced")
	if err := a.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := a.Get(ctx, date)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Filename != "second.csv" || !bytes.Equal(out.CSV, []byte("replaced")) {
		t.Errorf("Get() returned %q/%q, want replacement payload", out.Filename, out.CSV)
	}
}

func TestArchive_SavePrunesSupersededDates(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	old := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	current := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	if err := a.Save(ctx, payloadFor(old, "old.csv")); err != nil {
		t.Fatalf("Save(old) error = %v", err)
	}
	if err := a.Save(ctx, payloadFor(current, "current.csv")); err != nil {
		t.Fatalf("Save(current) error = %v", err)
	}

	if _, err := a.Get(ctx, old); !errors.Is(err, ErrEmpty) {
		t.Errorf("Get(old) error = %v, want ErrEmpty after pruning", err)
	}

	latest, err := a.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Filename != "current.csv" {
		t.Errorf("Latest().Filename = %q, want current.csv", latest.Filename)
	}
}
