// Package fetch retrieves the upstream dataset archive: an HTTP download of
// a ZIP file containing one dated CSV export. The rest of the system only
// sees the extracted Payload, so tests and the disk archive can substitute
// for the network through the Source interface.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNoDataset is returned when the downloaded archive contains no CSV
// member with a recognizable dataset date in its name.
var ErrNoDataset = errors.New("no CSV file with 8-digit date found in archive")

// maxArchiveSize bounds how much of the upstream response is read. The real
// archive is ~10MB; anything near this limit is corrupt or hostile.
const maxArchiveSize = 256 << 20

// datasetDateRe matches the YYYYMMDD token upstream embeds in CSV names.
var datasetDateRe = regexp.MustCompile(`(\d{8})`)

// Payload is one extracted upstream dataset.
type Payload struct {
	CSV         []byte
	Filename    string
	DatasetDate time.Time
	FetchedAt   time.Time
}

// Source supplies raw dataset payloads on demand. Implemented by Client for
// the network and by stubs in tests.
type Source interface {
	Fetch(ctx context.Context) (*Payload, error)
}

// Client downloads and extracts the upstream ZIP archive.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a fetch client for the given archive URL. timeout
// bounds one complete download attempt.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads the upstream archive and extracts the dated CSV from it.
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	// The upstream CDN rejects requests that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading archive: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize))
	if err != nil {
		return nil, fmt.Errorf("reading archive body: %w", err)
	}

	payload, err := ExtractDataset(body)
	if err != nil {
		return nil, err
	}
	payload.FetchedAt = time.Now()
	return payload, nil
}

// ExtractDataset opens a ZIP archive in memory and extracts the first CSV
// member whose name carries an 8-digit YYYYMMDD dataset date.
func ExtractDataset(zipBytes []byte) (*Payload, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		date, ok := DatasetDateFromName(f.Name)
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening archive member %s: %w", f.Name, err)
		}
		csvBytes, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", f.Name, err)
		}

		return &Payload{
			CSV:         csvBytes,
			Filename:    path.Base(f.Name),
			DatasetDate: date,
		}, nil
	}

	return nil, ErrNoDataset
}

// DatasetDateFromName parses the YYYYMMDD token embedded in an upstream
// file name. Returns false when the name carries no valid date.
func DatasetDateFromName(name string) (time.Time, bool) {
	m := datasetDateRe.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
