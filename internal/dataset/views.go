package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// topProvinces is how many provinces the stats breakdown lists individually
// before folding the remainder into an OTHER bucket.
const topProvinces = 20

// CompactPoint is one entry of the compact map view: just enough to place a
// marker. It marshals as a fixed-shape JSON array [id, lat, lon, category]
// to keep the ~90k-element payload small.
type CompactPoint struct {
	ID       int
	Lat      float64
	Lon      float64
	Category Category
}

// MarshalJSON encodes the point as [id, lat, lon, category].
func (p CompactPoint) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 48)
	buf = append(buf, '[')
	buf = strconv.AppendInt(buf, int64(p.ID), 10)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, p.Lat, 'f', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, p.Lon, 'f', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(p.Category), 10)
	buf = append(buf, ']')
	return buf, nil
}

// ListItem is one entry of the object-shaped listing view, with
// human-readable field names for easy consumption.
type ListItem struct {
	ID   int     `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
}

// Stats aggregates dataset-wide counts for one snapshot generation.
type Stats struct {
	Total              int            `json:"total"`
	ByProvince         map[string]int `json:"by_provincia"`
	ByCategory         map[string]int `json:"by_tipo"`
	ByStatus           map[string]int `json:"by_stato"`
	ByAvailabilityYear map[string]int `json:"by_availability_year"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ViewSet is the bundle of read-optimized views derived from one parsed
// record sequence. All views in one ViewSet are built from the same input
// in the same pass and are mutually consistent. A ViewSet is immutable once
// built; treat every field as read-only.
type ViewSet struct {
	byID        map[int]*Record
	listCompact []CompactPoint
	listItems   []ListItem
	listFull    []*Record
	stats       Stats
	etag        string
}

// ByID returns the record for id, or ErrNotFound.
func (v *ViewSet) ByID(id int) (*Record, error) {
	rec, ok := v.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListCompact returns the id-ordered compact map view.
func (v *ViewSet) ListCompact() []CompactPoint { return v.listCompact }

// ListItems returns the id-ordered object-shaped listing view.
func (v *ViewSet) ListItems() []ListItem { return v.listItems }

// ListFull returns the id-ordered full record view.
func (v *ViewSet) ListFull() []*Record { return v.listFull }

// Stats returns the aggregate counts for this view set.
func (v *ViewSet) Stats() Stats { return v.stats }

// ETag returns the content-derived token identifying this exact generation.
func (v *ViewSet) ETag() string { return v.etag }

// Len returns the record count.
func (v *ViewSet) Len() int { return len(v.listFull) }

// Build derives the full view set from a parsed record sequence in a single
// linear pass. A duplicate record ID is a BuildError: it signals upstream
// corruption, and the caller must abort the refresh cycle.
func Build(records []Record, now time.Time) (*ViewSet, error) {
	vs := &ViewSet{
		byID:        make(map[int]*Record, len(records)),
		listCompact: make([]CompactPoint, 0, len(records)),
		listItems:   make([]ListItem, 0, len(records)),
		listFull:    make([]*Record, 0, len(records)),
	}

	provinces := make(map[string]int)
	categories := make(map[string]int)
	statuses := make(map[string]int)
	years := make(map[string]int)

	for i := range records {
		rec := &records[i]
		if _, dup := vs.byID[rec.ID]; dup {
			return nil, buildErrorf("duplicate record id %d", rec.ID)
		}
		vs.byID[rec.ID] = rec
		vs.listFull = append(vs.listFull, rec)
		vs.listCompact = append(vs.listCompact, CompactPoint{
			ID:       rec.ID,
			Lat:      rec.Lat,
			Lon:      rec.Lon,
			Category: rec.Category,
		})
		vs.listItems = append(vs.listItems, ListItem{
			ID:   rec.ID,
			Lat:  rec.Lat,
			Lon:  rec.Lon,
			Type: rec.Category.String(),
		})

		categories[rec.Category.String()]++
		if rec.Province != "" {
			provinces[rec.Province]++
		}
		if rec.Status != "" {
			statuses[rec.Status]++
		}
		if len(rec.AvailabilityDate) >= 4 {
			years[rec.AvailabilityDate[:4]]++
		}
	}

	// Every record carries a valid category, so the breakdown must cover the
	// whole dataset.
	catTotal := 0
	for _, n := range categories {
		catTotal += n
	}
	if catTotal != len(records) {
		return nil, buildErrorf("category counts sum to %d, want %d", catTotal, len(records))
	}

	vs.stats = Stats{
		Total:              len(records),
		ByProvince:         foldProvinces(provinces),
		ByCategory:         categories,
		ByStatus:           statuses,
		ByAvailabilityYear: years,
		UpdatedAt:          now,
	}
	vs.etag = computeETag(len(records), categories, now)

	return vs, nil
}

// foldProvinces keeps the topProvinces most frequent provinces and folds the
// remainder into a single OTHER bucket.
func foldProvinces(counts map[string]int) map[string]int {
	if len(counts) <= topProvinces {
		return counts
	}

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, n := range counts {
		entries = append(entries, entry{name, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	out := make(map[string]int, topProvinces+1)
	other := 0
	for i, e := range entries {
		if i < topProvinces {
			out[e.name] = e.count
		} else {
			other += e.count
		}
	}
	if other > 0 {
		out["OTHER"] = other
	}
	return out
}

// computeETag derives a cache-validation token from the record count, the
// per-category counts and the build timestamp. Two builds over identical
// input differ only when their timestamps do; that is acceptable because the
// token exists for cache invalidation, not content addressing.
func computeETag(total int, categories map[string]int, now time.Time) string {
	cats := make([]string, 0, len(categories))
	for name, n := range categories {
		cats = append(cats, fmt.Sprintf("%s=%d", name, n))
	}
	sort.Strings(cats)

	h := sha256.New()
	fmt.Fprintf(h, "%d|%v|%d", total, cats, now.Unix())
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// emptyViewSet backs the store's pre-refresh snapshot. All lookups miss and
// all lists are empty, but every read operation stays well-defined.
func emptyViewSet() *ViewSet {
	return &ViewSet{
		byID:        map[int]*Record{},
		listCompact: []CompactPoint{},
		listItems:   []ListItem{},
		listFull:    []*Record{},
		stats: Stats{
			ByProvince:         map[string]int{},
			ByCategory:         map[string]int{},
			ByStatus:           map[string]int{},
			ByAvailabilityYear: map[string]int{},
		},
	}
}
