// router_test.go
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/constellationstudio/engine/internal/engine"
	"github.com/constellationstudio/engine/internal/graph"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.Config{FPS: 30, Logger: zerolog.Nop(), SessionID: t.Name()})
	s := NewServer(e, Config{Logger: zerolog.Nop()})
	e.SetEventSink(s.EventSink())
	return s, e
}

func TestCreateListGetDeleteNode(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	body, _ := json.Marshal(createNodeRequest{NodeType: graph.KindInputTestPattern, Config: createNodeConfig{Name: "bars"}})
	resp, err := http.Post(srv.URL+"/api/nodes", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createNodeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	listResp, err := http.Get(srv.URL + "/api/nodes")
	require.NoError(t, err)
	var nodes []nodeDTO
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&nodes))
	listResp.Body.Close()
	require.Len(t, nodes, 1)
	require.Equal(t, "bars", nodes[0].Name)

	getResp, err := http.Get(srv.URL + "/api/nodes/" + created.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	getResp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/nodes/"+created.ID.String(), nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()

	missResp, err := http.Get(srv.URL + "/api/nodes/" + created.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, missResp.StatusCode)
	missResp.Body.Close()
}

func TestCreateNodeInvalidKind(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	body, _ := json.Marshal(createNodeRequest{NodeType: graph.Kind("bogus"), Config: createNodeConfig{Name: "x"}})
	resp, err := http.Post(srv.URL+"/api/nodes", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestConnectAndDisconnect(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	mk := func(kind graph.Kind) graph.NodeID {
		body, _ := json.Marshal(createNodeRequest{NodeType: kind, Config: createNodeConfig{Name: string(kind)}})
		resp, err := http.Post(srv.URL+"/api/nodes", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		var created createNodeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		resp.Body.Close()
		return created.ID
	}
	source := mk(graph.KindInputTestPattern)
	target := mk(graph.KindOutputPreview)

	body, _ := json.Marshal(connectRequest{Source: source, Target: target, Type: "render"})
	resp, err := http.Post(srv.URL+"/api/connections", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/connections/"+source.String()+"/"+target.String(), nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()
}

func TestConnectCycleReturnsConflict(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	mk := func(name string) graph.NodeID {
		body, _ := json.Marshal(createNodeRequest{NodeType: graph.KindEffectBlur, Config: createNodeConfig{Name: name}})
		resp, err := http.Post(srv.URL+"/api/nodes", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		var created createNodeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		resp.Body.Close()
		return created.ID
	}
	a := mk("a")
	b := mk("b")

	connect := func(source, target graph.NodeID) *http.Response {
		body, _ := json.Marshal(connectRequest{Source: source, Target: target, Type: "render"})
		resp, err := http.Post(srv.URL+"/api/connections", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		return resp
	}
	resp := connect(a, b)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = connect(b, a)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestStartStopStatus(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/engine/start", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	statusResp, err := http.Get(srv.URL + "/api/engine/status")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&st))
	statusResp.Body.Close()
	require.Equal(t, true, st["running"])

	stopResp, err := http.Post(srv.URL+"/api/engine/stop", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, stopResp.StatusCode)
	stopResp.Body.Close()
}

func TestHardwareAndExportEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	for _, path := range []string{"/export/hardware", "/export/logs", "/export/traces", "/export/session"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
