package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hollis-lab/spectra-core/internal/bridge"
	"github.com/hollis-lab/spectra-core/internal/history"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/config"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/logging"
	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// fakeDirectory serves two fixed units.
type fakeDirectory struct{}

func (fakeDirectory) UnitIDs() []string { return []string{"spg-red", "spg-blue"} }

func (fakeDirectory) Describe(id string) (bridge.UnitDescription, bool) {
	if id != "spg-red" && id != "spg-blue" {
		return bridge.UnitDescription{}, false
	}
	return bridge.UnitDescription{
		ID:           id,
		Pixels:       1024,
		GratingCount: 2,
	}, true
}

func (fakeDirectory) Snapshot(id string) ([]spectro.Param, bool) {
	if id != "spg-red" && id != "spg-blue" {
		return nil, false
	}
	return []spectro.Param{
		{Channel: spectro.ChannelWavelength, Address: 0, Value: 632.8},
		{Channel: spectro.ChannelGrating, Address: 0, Value: 1},
	}, true
}

func (fakeDirectory) WriteReport(id string, out io.Writer) bool {
	if id != "spg-red" && id != "spg-blue" {
		return false
	}
	fmt.Fprintf(out, "unit %s (device 0)\n", id)
	return true
}

// fakeHistory returns canned entries.
type fakeHistory struct {
	failing bool
}

func (f fakeHistory) Parameters(_ context.Context, unitID string, _ int) ([]history.ParameterChange, error) {
	if f.failing {
		return nil, fmt.Errorf("database unavailable")
	}
	return []history.ParameterChange{
		{ID: 1, UnitID: unitID, Channel: "wavelength", Value: 632.8, Source: history.SourceCommand},
	}, nil
}

func (f fakeHistory) Commands(_ context.Context, unitID string, _ int) ([]history.CommandRecord, error) {
	if f.failing {
		return nil, fmt.Errorf("database unavailable")
	}
	return []history.CommandRecord{
		{ID: 1, CommandID: "cmd-1", UnitID: unitID, Channel: "wavelength", Value: 632.8, Outcome: "accepted"},
	}, nil
}

func newTestServer(t *testing.T, hist HistoryStore) *Server {
	t.Helper()
	s, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  logging.Discard(),
		Units:   fakeDirectory{},
		History: hist,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Units: fakeDirectory{}}); err == nil {
		t.Error("New() without logger: error = nil, want error")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without units: error = nil, want error")
	}
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v, want status ok, version test", body)
	}
}

func TestHandleListUnits(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/units/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Units []bridge.UnitDescription `json:"units"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if len(body.Units) != 2 {
		t.Fatalf("len(units) = %d, want 2", len(body.Units))
	}
	// Sorted by ID.
	if body.Units[0].ID != "spg-blue" || body.Units[1].ID != "spg-red" {
		t.Errorf("units = %v, want sorted by id", body.Units)
	}
}

func TestHandleGetUnit(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/units/spg-red")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body unitDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if body.ID != "spg-red" || body.Pixels != 1024 {
		t.Errorf("detail = %+v, want spg-red with 1024 pixels", body.UnitDescription)
	}
	if len(body.Parameters) != 2 {
		t.Errorf("len(parameters) = %d, want 2", len(body.Parameters))
	}
}

func TestHandleGetUnit_NotFound(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/units/spg-ghost")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body Error
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if body.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want not_found", body.Code)
	}
}

func TestHandleUnitReport(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/units/spg-red/report")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("report body is empty")
	}
}

func TestHandleUnitHistory(t *testing.T) {
	rec := doRequest(t, newTestServer(t, fakeHistory{}), http.MethodGet, "/api/v1/units/spg-red/history?limit=10")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		History []history.ParameterChange `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if len(body.History) != 1 || body.History[0].Channel != "wavelength" {
		t.Errorf("history = %v, want one wavelength entry", body.History)
	}
}

func TestHandleUnitHistory_Errors(t *testing.T) {
	tests := []struct {
		name string
		hist HistoryStore
		path string
		want int
	}{
		{"history disabled", nil, "/api/v1/units/spg-red/history", http.StatusNotFound},
		{"bad limit", fakeHistory{}, "/api/v1/units/spg-red/history?limit=abc", http.StatusBadRequest},
		{"negative limit", fakeHistory{}, "/api/v1/units/spg-red/history?limit=-1", http.StatusBadRequest},
		{"unknown unit", fakeHistory{}, "/api/v1/units/spg-ghost/history", http.StatusNotFound},
		{"store failure", fakeHistory{failing: true}, "/api/v1/units/spg-red/history", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newTestServer(t, tt.hist), http.MethodGet, tt.path)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleUnitCommands(t *testing.T) {
	rec := doRequest(t, newTestServer(t, fakeHistory{}), http.MethodGet, "/api/v1/units/spg-red/commands")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Commands []history.CommandRecord `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshalling body: %v", err)
	}
	if len(body.Commands) != 1 || body.Commands[0].Outcome != "accepted" {
		t.Errorf("commands = %v, want one accepted entry", body.Commands)
	}
}

func TestRequestIDHeader(t *testing.T) {
	rec := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/health")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
