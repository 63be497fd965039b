package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/stream"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /stream-query", s.handleStreamQuery)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /conversation-info", s.handleConversationInfo)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", handleNotFound)
}

// QueryRequest is the body of /query and /stream-query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the body of /query.
type QueryResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// sessionKey partitions conversations. A bearer credential wins, then the
// X-Session-ID header; anonymous callers share the default session.
func sessionKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok && tok != "" {
			return tok
		}
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return "default"
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	answer, err := s.runner.Process(ctx, sessionKey(r), req.Query)
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: err.Error()})
	case err != nil:
		s.log.Error().Err(err).Msg("query failed")
		writeJSON(w, http.StatusInternalServerError, QueryResponse{Error: userFacingError(err)})
	default:
		writeJSON(w, http.StatusOK, QueryResponse{Success: true, Response: answer})
	}
}

func (s *Server) handleStreamQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	ch, err := s.runner.Stream(ctx, sessionKey(r), req.Query)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: err.Error()})
		return
	}

	stream.PrepareHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	sw := stream.NewWriter(w)
	for chunk := range ch {
		if err := sw.WriteChunk(chunk); err != nil {
			s.log.Debug().Err(err).Msg("client dropped mid-stream")
			// drain so the runner goroutine can finish recording the answer
			for range ch {
			}
			return
		}
	}
	sw.Done()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Reset(r.Context(), sessionKey(r)); err != nil {
		s.log.Error().Err(err).Msg("reset failed")
		writeJSON(w, http.StatusInternalServerError, QueryResponse{Error: userFacingError(err)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Model: s.runner.Model()})
}

func (s *Server) handleConversationInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.runner.Info(r.Context(), sessionKey(r))
	if err != nil {
		s.log.Error().Err(err).Msg("conversation info failed")
		writeJSON(w, http.StatusInternalServerError, QueryResponse{Error: userFacingError(err)})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// wsFrame is one message on the WebSocket chat bridge.
type wsFrame struct {
	Type     string `json:"type"` // "delta" | "done" | "error"
	Content  string `json:"content,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleWebSocket bridges the chat loop onto a WebSocket: the client
// sends {"query": ...} frames, the server answers with delta frames and
// a final done frame per query.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(64 * 1024)

	session := sessionKey(r)
	s.log.Debug().Str("remote", r.RemoteAddr).Str("session", session).Msg("websocket connected")

	for {
		var req QueryRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.log.Debug().Err(err).Msg("websocket closed")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		ch, err := s.runner.Stream(ctx, session, req.Query)
		if err != nil {
			cancel()
			if werr := conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		var full strings.Builder
		failed := false
		for chunk := range ch {
			full.WriteString(chunk)
			if !failed {
				if err := conn.WriteJSON(wsFrame{Type: "delta", Content: chunk}); err != nil {
					failed = true // keep draining so the answer is recorded
				}
			}
		}
		cancel()
		if failed {
			return
		}
		if err := conn.WriteJSON(wsFrame{Type: "done", Response: full.String()}); err != nil {
			return
		}
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// userFacingError strips transport detail down to a short sentence.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, domain.ErrServerUnreachable):
		return "a required backend service is unavailable"
	case errors.Is(err, domain.ErrOracleUnavailable):
		return "the reasoning service is unavailable"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
