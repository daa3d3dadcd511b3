package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/alfredjeanlab/gridpanel/internal/grid"
)

// gridSummary is one entry of GET /v1/grids.
type gridSummary struct {
	ID     string `json:"id"`
	Entity string `json:"entity"`
}

// handleListGrids handles GET /v1/grids.
func (s *GridServer) handleListGrids(w http.ResponseWriter, _ *http.Request) {
	grids := []gridSummary{}
	for _, id := range s.registry.IDs() {
		g, _ := s.registry.Get(id)
		grids = append(grids, gridSummary{ID: id, Entity: g.Entity().Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grids": grids})
}

// handleGetGrid handles GET /v1/grids/{grid}, returning the widget config.
func (s *GridServer) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	s.serveCall(w, r, r.PathValue("grid"), grid.EndpointGetConfig, nil)
}

// handleCall handles POST /v1/grids/{grid}/{endpoint}. The body is a JSON
// object of endpoint params, or a url-encoded form.
func (s *GridServer) handleCall(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveCall(w, r, r.PathValue("grid"), r.PathValue("endpoint"), p)
}

func (s *GridServer) serveCall(w http.ResponseWriter, r *http.Request, id, endpoint string, p grid.Params) {
	resp, err := s.Call(r.Context(), id, sessionFromContext(r.Context()), endpoint, p)
	if err != nil {
		code, _ := errorStatus(err)
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxFormMemory bounds the multipart form parts held in memory.
const maxFormMemory = 8 << 20

func readParams(r *http.Request) (grid.Params, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, errors.New("invalid form body")
		}
		p := grid.Params{}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				p[k] = vs[0]
			}
		}
		return p, nil
	}

	p := grid.Params{}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON body")
	}
	return p, nil
}
