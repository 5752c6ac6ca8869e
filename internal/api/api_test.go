/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/maintenance"
	"github.com/netmaint/netmaint/internal/topology"
)

func newTestAPI(t *testing.T) (*chi.Mux, *topology.Service) {
	t.Helper()

	logger := zerolog.Nop()
	topo := topology.NewService(logger)
	bus := events.NewBus()
	scheduler := maintenance.NewScheduler(logger)
	t.Cleanup(scheduler.Stop)
	store := maintenance.NewStore(nil, logger)
	svc := maintenance.NewService(store, scheduler, topo, bus, logger)

	r := chi.NewRouter()
	New(svc, topo, logger).Routes(r)
	return r, topo
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func windowBody(id string) maintenance.Record {
	start := time.Now().UTC().Add(time.Hour)
	return maintenance.Record{
		ID:    id,
		Start: start.Format(maintenance.TimeLayout),
		End:   start.Add(time.Hour).Format(maintenance.TimeLayout),
		Items: []any{"01:23:45:67:89:ab:cd:ef"},
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doJSON(t, r, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWindowLifecycle(t *testing.T) {
	r, _ := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", windowBody("mw-api"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created["id"] != "mw-api" {
		t.Fatalf("created id = %q", created["id"])
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/maintenance/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []maintenance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "mw-api" {
		t.Fatalf("list = %+v", list)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/maintenance/mw-api/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got maintenance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0] != "01:23:45:67:89:ab:cd:ef" {
		t.Fatalf("items = %v", got.Items)
	}

	newEnd := time.Now().UTC().Add(5 * time.Hour).Format(maintenance.TimeLayout)
	rec = doJSON(t, r, http.MethodPatch, "/api/v1/maintenance/mw-api/", map[string]any{"end": newEnd})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body)
	}
	var patched maintenance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if patched.End != newEnd {
		t.Fatalf("patched end = %q, want %q", patched.End, newEnd)
	}

	rec = doJSON(t, r, http.MethodDelete, "/api/v1/maintenance/mw-api/", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/maintenance/mw-api/", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", rec.Code)
	}
}

func TestWindowCreateValidation(t *testing.T) {
	r, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json status = %d", rec.Code)
	}

	past := windowBody("mw-past")
	past.Start = time.Now().UTC().Add(-2 * time.Hour).Format(maintenance.TimeLayout)
	past.End = time.Now().UTC().Add(-time.Hour).Format(maintenance.TimeLayout)
	rec = doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", past)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past window status = %d", rec.Code)
	}

	body := windowBody("mw-dup")
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d", rec.Code)
	}
}

func TestWindowUpdateValidation(t *testing.T) {
	r, _ := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPatch, "/api/v1/maintenance/missing/", map[string]any{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("patch missing status = %d", rec.Code)
	}

	if rec := doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", windowBody("mw-bad")); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	badEnd := time.Now().UTC().Add(-10 * time.Hour).Format(maintenance.TimeLayout)
	rec = doJSON(t, r, http.MethodPatch, "/api/v1/maintenance/mw-bad/", map[string]any{"end": badEnd})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted patch status = %d", rec.Code)
	}
}

func TestTopologyEndpoints(t *testing.T) {
	r, _ := newTestAPI(t)

	intf := map[string]any{
		"id":     "00:00:00:00:00:00:00:01:1",
		"name":   "eth1",
		"switch": "00:00:00:00:00:00:00:01",
		"port":   1,
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v1/topology/interfaces", intf)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/topology/interfaces", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["id"] != "00:00:00:00:00:00:00:01:1" {
		t.Fatalf("list = %v", list)
	}

	path := fmt.Sprintf("/api/v1/topology/interfaces/%s/", "00:00:00:00:00:00:00:01:1")
	rec = doJSON(t, r, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodDelete, path, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get removed status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/topology/interfaces", map[string]any{"name": "no-id"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("add without id status = %d", rec.Code)
	}
}

func TestWindowItemResolution(t *testing.T) {
	r, topo := newTestAPI(t)
	if err := topo.AddInterface(&topology.Interface{ID: "00:00:00:00:00:00:00:03:1", Name: "eth3", Port: 1}); err != nil {
		t.Fatalf("seed interface: %v", err)
	}

	body := windowBody("mw-uni")
	body.Items = []any{
		map[string]any{
			"interface_id": "00:00:00:00:00:00:00:03:1",
			"tag":          map[string]any{"tag_type": "vlan", "value": 100},
		},
		map[string]any{
			"interface_id": "unknown:7",
			"tag":          map[string]any{"tag_type": "vlan", "value": 100},
		},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v1/maintenance/", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/maintenance/mw-uni/", nil)
	var got maintenance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("unresolvable item not dropped: %v", got.Items)
	}
}
