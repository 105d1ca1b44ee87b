// handlers.go - REST handlers for the control-plane binding
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/constellationstudio/engine/internal/errs"
	"github.com/constellationstudio/engine/internal/graph"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeErr maps the engine's classified errors onto HTTP status codes and
// writes an {"error": "..."} JSON body.
func writeErr(w http.ResponseWriter, err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.KindNodeNotFound:
			writeJSON(w, http.StatusNotFound, errorResponse{Error: e.Error()})
		case errs.KindInvalidNodeKind, errs.KindInvalidConnection, errs.KindInvalidParameter, errs.KindParameterOutOfRange:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: e.Error()})
		case errs.KindCycleDetected:
			writeJSON(w, http.StatusConflict, errorResponse{Error: e.Error()})
		case errs.KindEngineAlreadyRunning, errs.KindEngineNotRunning:
			writeJSON(w, http.StatusConflict, errorResponse{Error: e.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: e.Error()})
		}
		return
	}
	var pe *graph.ParamError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: pe.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func parseNodeID(r *http.Request, param string) (graph.NodeID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// createNodeRequest is POST /api/nodes' {node_type,config} body;
// config.name becomes the node's display name and config.parameters, if
// present, is applied immediately after construction.
type createNodeRequest struct {
	NodeType graph.Kind       `json:"node_type"`
	Config   createNodeConfig `json:"config"`
}

type createNodeConfig struct {
	Name       string                     `json:"name"`
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
}

type createNodeResponse struct {
	ID graph.NodeID `json:"id"`
}

// statusDTO renders scheduler.Status with the wire-level snake_case field
// names, since the core Status type carries no JSON tags.
type statusDTO struct {
	Running         bool    `json:"running"`
	FPS             float64 `json:"fps"`
	FrameCount      uint64  `json:"frame_count"`
	NodeCount       int     `json:"node_count"`
	ConnectionCount int     `json:"connection_count"`
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	props := s.engine.ListNodes()
	out := make([]nodeDTO, len(props))
	for i, p := range props {
		out[i] = toNodeDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	id, err := s.engine.AddNode(req.NodeType, req.Config.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(req.Config.Parameters) > 0 {
		props, err := s.engine.Describe(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		values := make(map[string]graph.Value, len(req.Config.Parameters))
		for key, v := range req.Config.Parameters {
			val, err := jsonToValue(props.Schema, key, v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			values[key] = val
		}
		if err := s.engine.SetParameters(id, values); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, createNodeResponse{ID: id})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := parseNodeID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid node id"})
		return
	}
	props, err := s.engine.Describe(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodeDTO(props))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := parseNodeID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid node id"})
		return
	}
	if err := s.engine.RemoveNode(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetParameters(w http.ResponseWriter, r *http.Request) {
	id, err := parseNodeID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid node id"})
		return
	}
	props, err := s.engine.Describe(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	var body struct {
		Parameters map[string]json.RawMessage `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	raw := body.Parameters
	values := make(map[string]graph.Value, len(raw))
	for key, v := range raw {
		val, err := jsonToValue(props.Schema, key, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		values[key] = val
	}
	if err := s.engine.SetParameters(id, values); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type connectRequest struct {
	Source graph.NodeID `json:"source"`
	Target graph.NodeID `json:"target"`
	Type   string       `json:"type"`
}

func portTypeFromString(s string) (graph.PortType, bool) {
	switch s {
	case "render":
		return graph.PortRender, true
	case "audio":
		return graph.PortAudio, true
	case "control":
		return graph.PortControl, true
	case "tally":
		return graph.PortTally, true
	default:
		return 0, false
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	pt, ok := portTypeFromString(req.Type)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown port type " + req.Type})
		return
	}
	if err := s.engine.Connect(req.Source, req.Target, pt); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	source, err := parseNodeID(r, "source")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid source id"})
		return
	}
	target, err := parseNodeID(r, "target")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid target id"})
		return
	}
	if err := s.engine.Disconnect(source, target); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The engine run loop outlives this request, so it is started against
	// a background context rather than r.Context() (canceled as soon as
	// this handler returns); Stop is the only way to end it.
	if err := s.engine.Start(context.Background()); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, statusDTO{
		Running:         st.Running,
		FPS:             st.FPS,
		FrameCount:      st.FrameCount,
		NodeCount:       st.NodeCount,
		ConnectionCount: st.ConnectionCount,
	})
}

func (s *Server) handleHardware(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Hardware())
}

func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	s.exportJSON(w, s.engine.Telemetry().ExportLogs)
}

func (s *Server) handleExportTraces(w http.ResponseWriter, r *http.Request) {
	s.exportJSON(w, s.engine.Telemetry().ExportTraces)
}

func (s *Server) handleExportSessionStats(w http.ResponseWriter, r *http.Request) {
	s.exportJSON(w, s.engine.Telemetry().ExportSessionStats)
}

func (s *Server) exportJSON(w http.ResponseWriter, export func() (string, error)) {
	payload, err := export()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}
