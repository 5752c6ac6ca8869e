/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: maintenance window CRUD and
// topology inventory endpoints under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/maintenance"
	"github.com/netmaint/netmaint/internal/topology"
)

// API exposes HTTP handlers.
type API struct {
	maintenance *maintenance.Service
	topology    *topology.Service
	logger      zerolog.Logger
}

// New creates the API router wrapper.
func New(maintenanceSvc *maintenance.Service, topologySvc *topology.Service, logger zerolog.Logger) *API {
	return &API{
		maintenance: maintenanceSvc,
		topology:    topologySvc,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API routes on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/", a.handleWindowsList)
			r.Post("/", a.handleWindowCreate)
			r.Route("/{windowID}", func(r chi.Router) {
				r.Get("/", a.handleWindowGet)
				r.Patch("/", a.handleWindowUpdate)
				r.Delete("/", a.handleWindowDelete)
			})
		})

		r.Route("/topology", func(r chi.Router) {
			r.Get("/interfaces", a.handleInterfacesList)
			r.Post("/interfaces", a.handleInterfaceAdd)
			r.Route("/interfaces/{interfaceID}", func(r chi.Router) {
				r.Get("/", a.handleInterfaceGet)
				r.Delete("/", a.handleInterfaceRemove)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleWindowsList(w http.ResponseWriter, r *http.Request) {
	windows := a.maintenance.ListWindows()
	out := make([]maintenance.Record, 0, len(windows))
	for _, window := range windows {
		out = append(out, window.ToRecord())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleWindowCreate(w http.ResponseWriter, r *http.Request) {
	var rec maintenance.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	window, err := a.maintenance.CreateWindow(r.Context(), rec)
	if err != nil {
		switch {
		case errors.Is(err, maintenance.ErrWindowExists):
			writeError(w, http.StatusConflict, "window_exists")
		case errors.Is(err, maintenance.ErrInvalidInterval), errors.Is(err, maintenance.ErrStartInPast):
			writeError(w, http.StatusBadRequest, "invalid_interval")
		default:
			a.logger.Error().Err(err).Msg("window create failed")
			writeError(w, http.StatusBadRequest, "invalid_window")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": window.ID})
}

func (a *API) handleWindowGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "windowID")
	window, err := a.maintenance.GetWindow(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, window.ToRecord())
}

func (a *API) handleWindowUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "windowID")

	var patch maintenance.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	window, err := a.maintenance.UpdateWindow(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, maintenance.ErrWindowNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, maintenance.ErrInvalidInterval):
			writeError(w, http.StatusBadRequest, "invalid_interval")
		default:
			a.logger.Error().Err(err).Str("window_id", id).Msg("window update failed")
			writeError(w, http.StatusBadRequest, "invalid_patch")
		}
		return
	}

	writeJSON(w, http.StatusOK, window.ToRecord())
}

func (a *API) handleWindowDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "windowID")
	if err := a.maintenance.DeleteWindow(r.Context(), id); err != nil {
		a.logger.Error().Err(err).Str("window_id", id).Msg("window delete failed")
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInterfacesList(w http.ResponseWriter, r *http.Request) {
	interfaces := a.topology.ListInterfaces()
	out := make([]map[string]any, 0, len(interfaces))
	for _, intf := range interfaces {
		out = append(out, intf.AsDict())
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleInterfaceAdd(w http.ResponseWriter, r *http.Request) {
	var intf topology.Interface
	if err := json.NewDecoder(r.Body).Decode(&intf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := a.topology.AddInterface(&intf); err != nil {
		writeError(w, http.StatusBadRequest, "interface_id_required")
		return
	}
	writeJSON(w, http.StatusCreated, intf.AsDict())
}

func (a *API) handleInterfaceGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interfaceID")
	intf, err := a.topology.GetInterfaceByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, intf.AsDict())
}

func (a *API) handleInterfaceRemove(w http.ResponseWriter, r *http.Request) {
	a.topology.RemoveInterface(chi.URLParam(r, "interfaceID"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
