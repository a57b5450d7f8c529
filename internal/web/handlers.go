package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmoretti/fibermirror/internal/dataset"
	"github.com/lmoretti/fibermirror/internal/refresh"
)

// datasetMaxAge tells clients and intermediaries how long a snapshot may be
// reused. The upstream dataset is republished once a day.
const datasetMaxAge = 86400

// setCacheHeaders stamps the snapshot identity on a response. The ETag
// changes with every published generation, so clients revalidating with
// If-None-Match pick up a new snapshot as soon as one is live.
func setCacheHeaders(w http.ResponseWriter, snap *dataset.Snapshot) {
	w.Header().Set("ETag", `"`+snap.Views.ETag()+`"`)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", datasetMaxAge))
	if !snap.Source.DatasetDate.IsZero() {
		w.Header().Set("X-Dataset-Date", snap.Source.DatasetDate.Format("2006-01-02"))
	}
}

// notModified answers a conditional request against the snapshot's ETag.
// Returns true when a 304 was written and the handler should stop.
func notModified(w http.ResponseWriter, r *http.Request, snap *dataset.Snapshot) bool {
	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+snap.Views.ETag()+`"` {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

// handleRoot describes the service and its endpoints.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "fibermirror",
		"description": "read-only mirror of the FiberCop CRO/CNO cabinet dataset",
		"endpoints": map[string]string{
			"/":             "this document",
			"/list":         "all records as {id, lat, lon, type} objects",
			"/listmap":      "compact [id, lat, lon, type] tuples for map rendering",
			"/details/{id}": "single record by id",
			"/stats":        "aggregate counts by province, type, status and availability year",
			"/raw":          "full records plus fetch metadata",
			"/download":     "original CSV of the current snapshot",
			"/health":       "service and refresh pipeline state",
			"/metrics":      "prometheus metrics",
		},
	})
}

// handleList returns every record as a flat {id, lat, lon, type} object.
// Full attributes are available per record via /details or in bulk via /raw.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, snap.Views.ListItems())
}

// handleListMap returns the compact tuple view used by map frontends.
func (s *Server) handleListMap(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, snap.Views.ListCompact())
}

// handleDetails returns a single record by its snapshot-local id.
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	snap := s.store.Current()
	rec, err := snap.Lookup(id)
	if err != nil {
		respondError(w, err)
		return
	}

	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleStats returns the precomputed aggregate view.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}
	writeJSON(w, http.StatusOK, snap.Views.Stats())
}

// rawResponse wraps the full record list with refresh metadata.
type rawResponse struct {
	LatestUpdateDate string            `json:"latest_update_date"`
	LastFetchTime    string            `json:"last_fetch_time"`
	FetchStatus      string            `json:"fetch_status"`
	Generation       uint64            `json:"generation"`
	Data             []*dataset.Record `json:"data"`
}

// handleRaw returns the full dataset together with fetch metadata.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}

	st := s.status.Status()
	resp := rawResponse{
		FetchStatus: st.State,
		Generation:  snap.Generation,
		Data:        snap.Views.ListFull(),
	}
	if !snap.Source.DatasetDate.IsZero() {
		resp.LatestUpdateDate = snap.Source.DatasetDate.Format("2006-01-02")
	}
	if !st.LastRun.IsZero() {
		resp.LastFetchTime = st.LastRun.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload serves the original CSV backing the current snapshot.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if len(snap.Source.RawCSV) == 0 {
		writeError(w, http.StatusNotFound, "no dataset available yet")
		return
	}

	setCacheHeaders(w, snap)
	if notModified(w, r, snap) {
		return
	}

	filename := snap.Source.Filename
	if filename == "" {
		filename = "dataset.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Source.RawCSV)))
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Source.RawCSV)
}

// healthResponse reports service liveness and refresh pipeline state.
type healthResponse struct {
	Status      string `json:"status"`
	FetchStatus string `json:"fetch_status"`
	LastFetch   string `json:"last_fetch,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	LatestDate  string `json:"latest_date,omitempty"`
	RecordCount int    `json:"record_count"`
	Generation  uint64 `json:"generation"`
}

// handleHealth reports liveness. The endpoint is 200 as long as the server
// can answer; a degraded refresh pipeline shows up in the body, not the
// status code, because stale data is still served.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	st := s.status.Status()

	resp := healthResponse{
		Status:      "healthy",
		FetchStatus: st.State,
		LastError:   st.LastError,
		RecordCount: snap.Views.Len(),
		Generation:  snap.Generation,
	}
	if st.State == refresh.StateError {
		resp.Status = "degraded"
	}
	if snap.Generation == 0 {
		resp.Status = "starting"
	}
	if !st.LastRun.IsZero() {
		resp.LastFetch = st.LastRun.UTC().Format(time.RFC3339)
	}
	if !snap.Source.DatasetDate.IsZero() {
		resp.LatestDate = snap.Source.DatasetDate.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, resp)
}
