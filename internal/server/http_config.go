package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/layout"
	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// setConfigRequest is the JSON body for PUT /v1/configs/{key}.
type setConfigRequest struct {
	Value json.RawMessage `json:"value"`
}

// validateConfig checks the values of the keys the grids read back:
// "<grid>:settings" must be a settings layer and "<grid>:columns" a column
// list. Other keys are stored as given.
func validateConfig(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return errors.New("value must be valid JSON")
	}
	_, name, _ := strings.Cut(key, ":")
	switch name {
	case grid.SettingsName:
		layer, err := config.ParseLayer(value)
		if err != nil {
			return err
		}
		if _, err := config.ResolveSettings(model.DefaultGridSettings(), layer); err != nil {
			return err
		}
	case layout.ConfigName:
		var cols model.Columns
		if err := json.Unmarshal(value, &cols); err != nil {
			return fmt.Errorf("columns: %w", err)
		}
	}
	return nil
}

// handleSetConfig handles PUT /v1/configs/{key}.
func (s *GridServer) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateConfig(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := &model.Config{
		Key:   key,
		Value: req.Value,
	}

	if err := s.store.SetConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleGetConfig handles GET /v1/configs/{key}.
func (s *GridServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	cfg, err := s.store.GetConfig(r.Context(), key)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "config not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleListConfigs handles GET /v1/configs?namespace=...; without a
// namespace every stored config is returned.
func (s *GridServer) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")

	var (
		configs []*model.Config
		err     error
	)
	if namespace == "" {
		configs, err = s.store.ListAllConfigs(r.Context())
	} else {
		configs, err = s.store.ListConfigs(r.Context(), namespace)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list configs")
		return
	}

	if configs == nil {
		configs = []*model.Config{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

// handleDeleteConfig handles DELETE /v1/configs/{key}.
func (s *GridServer) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := s.store.DeleteConfig(r.Context(), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "config not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete config")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
