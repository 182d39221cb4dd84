package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bosley/murmur/model"
	"github.com/bosley/murmur/source"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the initial start/stop message after connecting
	startWait = 30 * time.Second

	// Bound on how long segment delivery may wait on a slow client before
	// the segment is dropped
	sinkWait = 5 * time.Second
)

type loadModelRequest struct {
	Model     string `json:"model"`
	ModelPath string `json:"model_path,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Variant   string `json:"variant,omitempty"`
}

type startMessage struct {
	Action        string `json:"action"`
	SourceType    string `json:"source_type,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	Language      string `json:"language,omitempty"`
	InitialPrompt string `json:"initial_prompt,omitempty"`
}

type statusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type wsConnection struct {
	conn      *websocket.Conn
	tag       string
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	scribe    *Scribe
}

// Serve runs the HTTP/WebSocket control surface until ctx is cancelled, then
// shuts the server down. The spool watcher runs alongside when configured.
func (s *Scribe) Serve(ctx context.Context) error {
	router := mux.NewRouter()

	router.HandleFunc("/api/models", s.handleListModels).Methods("GET")
	router.HandleFunc("/api/models/load", s.handleLoadModel).Methods("POST")
	router.HandleFunc("/api/models/{name}/capabilities", s.handleCapabilities).Methods("GET")
	router.HandleFunc("/api/streams", s.handleListStreams).Methods("GET")
	router.HandleFunc("/api/streams/{tag}/stop", s.handleStopStream).Methods("POST")
	router.HandleFunc("/api/transcripts/{tag}", s.handleGetTranscript).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/ws/{tag}", s.handleWebSocket)

	server := &http.Server{
		Addr:    s.config.HTTPAddr,
		Handler: router,
	}

	if s.config.SpoolDir != "" {
		go s.watchSpool(ctx)
	}

	go func() {
		slog.Info("HTTP server listening", "addr", s.config.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	return server.Shutdown(context.Background())
}

func (s *Scribe) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.models.Available())
}

func (s *Scribe) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req loadModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.LoadModel(r.Context(), req.Model, model.Config{
		ModelPath: req.ModelPath,
		APIKey:    req.APIKey,
		Variant:   req.Variant,
	})
	if err != nil {
		if errors.Is(err, model.ErrUnknownModel) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("Failed to load model", "model", req.Model, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, statusMessage{Status: "loaded", Message: req.Model})
}

func (s *Scribe) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	// Capabilities are queryable without loading weights; a throwaway
	// instance is enough.
	m, err := s.models.New(name, model.Config{ModelPath: "-", APIKey: "-"})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, m.Capabilities())
}

func (s *Scribe) handleListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ListActive())
}

func (s *Scribe) handleStopStream(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	if err := s.Stop(tag); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "stream not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusMessage{Status: "stopped", Message: tag})
}

func (s *Scribe) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	writeJSON(w, s.Transcript(tag))
}

// handleWebSocket drives one realtime stream: the client's first message
// starts a pipeline whose segments are written back as JSON, and a
// disconnect stops the pipeline exactly like an explicit stop request.
func (s *Scribe) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "tag", tag, "error", err)
		return
	}

	wsConn := &wsConnection{
		conn:   conn,
		tag:    tag,
		send:   make(chan []byte, 256),
		closed: make(chan struct{}),
		scribe: s,
	}
	slog.Info("WebSocket connected", "tag", tag)

	conn.SetReadDeadline(time.Now().Add(startWait))
	var msg startMessage
	if err := conn.ReadJSON(&msg); err != nil {
		slog.Warn("WebSocket start message not received", "tag", tag, "error", err)
		conn.Close()
		return
	}

	switch msg.Action {
	case "start":
		params := StreamParams{
			FilePath:      msg.FilePath,
			Language:      msg.Language,
			InitialPrompt: msg.InitialPrompt,
		}
		if err := s.Start(source.Type(msg.SourceType), tag, params, wsConn.sink()); err != nil {
			wsConn.writeStatus(statusMessage{Status: "error", Message: err.Error()})
			conn.Close()
			return
		}
		wsConn.writeStatus(statusMessage{Status: "started", Message: tag})

	case "stop":
		if err := s.Stop(tag); err != nil && !errors.Is(err, ErrNotFound) {
			wsConn.writeStatus(statusMessage{Status: "error", Message: err.Error()})
		} else {
			wsConn.writeStatus(statusMessage{Status: "stopped", Message: tag})
		}
		conn.Close()
		return

	default:
		wsConn.writeStatus(statusMessage{Status: "error", Message: "expected action start or stop"})
		conn.Close()
		return
	}

	go wsConn.writePump()
	go wsConn.readPump()
}

// sink returns the pipeline's output callback for this connection. Delivery
// is bounded: a client that stops draining for sinkWait loses the segment but
// not the stream, while a closed connection unwinds the pipeline.
func (c *wsConnection) sink() Sink {
	return func(ctx context.Context, seg Segment) error {
		data, err := json.Marshal(seg)
		if err != nil {
			return err
		}

		select {
		case c.send <- data:
			return nil
		case <-c.closed:
			return ErrSinkClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sinkWait):
			return errors.New("client not draining, segment dropped")
		}
	}
}

func (c *wsConnection) writeStatus(msg statusMessage) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Debug("Failed to write status message", "tag", c.tag, "error", err)
	}
}

func (c *wsConnection) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsConnection) readPump() {
	defer func() {
		c.close()
		c.conn.Close()

		// Consumer disconnect unwinds the stream like an explicit stop.
		if err := c.scribe.Stop(c.tag); err != nil && !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to stop stream on disconnect", "tag", c.tag, "error", err)
		}
		slog.Info("WebSocket disconnected", "tag", c.tag)
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg startMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket read error", "tag", c.tag, "error", err)
			}
			return
		}
		if msg.Action == "stop" {
			return
		}
		slog.Warn("Unrecognized WebSocket message", "tag", c.tag, "action", msg.Action)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
