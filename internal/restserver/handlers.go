package restserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/siminhale/siminhale/internal/particlecsv"
	"github.com/siminhale/siminhale/internal/tracking"
	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"github.com/siminhale/siminhale/pkg/reference"
	"github.com/siminhale/siminhale/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// ClassifyRequest is the body of POST /api/classify
type ClassifyRequest struct {
	Points []ClassifyPoint `json:"points"`
}

// ClassifyPoint is one requested position. A coordinate that is absent or
// null leaves the point unclassified.
type ClassifyPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Point converts p, turning missing coordinates into NaN.
func (p ClassifyPoint) Point() geometry.Point {
	return geometry.Point{X: coordinate(p.X), Y: coordinate(p.Y), Z: coordinate(p.Z)}
}

func coordinate(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// ClassifyResponse holds one segment per requested point
type ClassifyResponse struct {
	GeometryVersion string             `json:"geometry_version"`
	Segments        []geometry.Segment `json:"segments"`
}

// GeometryResponse describes the active segment table
type GeometryResponse struct {
	Table    *geometry.Table    `json:"table"`
	Overlaps []geometry.Overlap `json:"overlaps"`
}

// PostSummary aggregates an uploaded particle CSV
func (h *Handlers) PostSummary(w http.ResponseWriter, req *http.Request) {
	rule := h.controller.stagnant
	if s := req.URL.Query().Get("stagnant"); s != "" {
		parsed, err := deposition.ParseStagnantRule(s)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error(), nil)
			return
		}
		rule = parsed
	}

	records, err := particlecsv.Read(http.MaxBytesReader(w, req.Body, MaxUploadBytes))
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid particle CSV: "+err.Error(), nil)
		return
	}

	summary, err := deposition.Summarize(records, deposition.Options{
		Geometry: h.controller.geometry,
		Stagnant: rule,
	})
	switch {
	case errors.Is(err, deposition.ErrNoDeposited):
		h.formatter.WriteError(w, req, http.StatusUnprocessableEntity, err.Error(), summary.Totals)
		return
	case errors.Is(err, deposition.ErrNoParticles):
		h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		h.controller.logger.Errorf("error summarising particles: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "internal error", nil)
		return
	}

	if err := h.formatter.WriteResponse(w, req, summary, nil); err != nil {
		h.controller.logger.Errorf("error writing summary response: %v", err)
	}
}

// PostClassify assigns a segment to each posted point
func (h *Handlers) PostClassify(w http.ResponseWriter, req *http.Request) {
	var body ClassifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, MaxUploadBytes))
	if err := dec.Decode(&body); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return
	}

	points := make([]geometry.Point, len(body.Points))
	for i, p := range body.Points {
		points[i] = p.Point()
	}
	resp := ClassifyResponse{
		GeometryVersion: h.controller.geometry.Version,
		Segments:        h.controller.geometry.ClassifyAll(points),
	}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		h.controller.logger.Errorf("error writing classify response: %v", err)
	}
}

// GetGeometry returns the active table and the segment pairs it shadows
func (h *Handlers) GetGeometry(w http.ResponseWriter, req *http.Request) {
	resp := GeometryResponse{
		Table:    h.controller.geometry,
		Overlaps: h.controller.geometry.Overlaps(),
	}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		h.controller.logger.Errorf("error writing geometry response: %v", err)
	}
}

// GetReferences returns the published reference datasets
func (h *Handlers) GetReferences(w http.ResponseWriter, req *http.Request) {
	if err := h.formatter.WriteResponse(w, req, reference.All(), nil); err != nil {
		h.controller.logger.Errorf("error writing references response: %v", err)
	}
}

// GetRuns lists tracked runs, optionally filtered by experiment
func (h *Handlers) GetRuns(w http.ResponseWriter, req *http.Request) {
	store := h.controller.store
	if store == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "run tracking is not configured", nil)
		return
	}

	runs, err := store.ListRuns(req.Context(), req.URL.Query().Get("experiment"))
	if err != nil {
		h.controller.logger.Errorf("error listing runs: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if runs == nil {
		runs = []tracking.Run{}
	}
	if err := h.formatter.WriteResponse(w, req, runs, nil); err != nil {
		h.controller.logger.Errorf("error writing runs response: %v", err)
	}
}

// GetRun returns one run with its params, metrics, tags and artifacts
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	store := h.controller.store
	if store == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "run tracking is not configured", nil)
		return
	}

	run, err := store.GetRun(req.Context(), mux.Vars(req)["id"])
	if errors.Is(err, tracking.ErrRunNotFound) {
		h.formatter.WriteError(w, req, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		h.controller.logger.Errorf("error fetching run: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if err := h.formatter.WriteResponse(w, req, run, nil); err != nil {
		h.controller.logger.Errorf("error writing run response: %v", err)
	}
}
