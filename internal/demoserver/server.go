// Package demoserver is a stub chat backend implementing the wire contract
// the client consumes: a per-user SSE stream with history replay, a
// form-encoded send endpoint, and a presence heartbeat. It exists for local
// development and end-to-end testing; the real backend is a separate system.
package demoserver

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/securechat-client/internal/proto"
)

// Server wires the stub backend's routes.
type Server struct {
	engine    *gin.Engine
	hub       *hub
	log       *zerolog.Logger
	keepAlive time.Duration

	mu    sync.Mutex
	beats map[string]beat
}

type beat struct {
	displayName string
	lastSeen    time.Time
}

// New builds the stub server. keepAlive paces SSE comment keep-alives;
// zero means 15 seconds.
func New(logger *zerolog.Logger, keepAlive time.Duration) *Server {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		hub:       newHub(),
		log:       logger,
		keepAlive: keepAlive,
		beats:     make(map[string]beat),
	}

	s.engine.Use(gin.Recovery(), requestLogger(logger))

	api := s.engine.Group("/api")
	api.GET("/stream", s.handleStream)
	api.POST("/send", s.handleSend)
	api.POST("/presence/beat", s.handleHeartbeat)
	api.GET("/users", s.handleUsers)

	return s
}

// Handler exposes the server as a plain http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleStream(c *gin.Context) {
	user := strings.TrimSpace(c.Query("u"))
	if user == "" {
		c.String(http.StatusBadRequest, "Username required")
		return
	}

	ch, replay := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for _, data := range replay {
		_ = sse.Encode(c.Writer, sse.Event{Event: proto.EventMessage, Data: data})
	}
	c.Writer.Flush()

	s.log.Info().Str("user", user).Msg("stream connected")
	s.hub.broadcast("system", user+" joined the chat", proto.TypeSystem)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-ch:
			if !ok {
				return false
			}
			_ = sse.Encode(w, sse.Event{Event: proto.EventMessage, Data: data})
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	s.log.Info().Str("user", user).Msg("stream closed")
}

func (s *Server) handleSend(c *gin.Context) {
	user := strings.TrimSpace(c.PostForm("username"))
	text := strings.TrimSpace(c.PostForm("text"))
	if user == "" || text == "" {
		c.String(http.StatusBadRequest, "Username and text are required")
		return
	}
	s.hub.broadcast(user, text, "")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm("userId"))
	if userID == "" {
		c.String(http.StatusBadRequest, "userId required")
		return
	}
	s.mu.Lock()
	s.beats[userID] = beat{
		displayName: strings.TrimSpace(c.PostForm("displayName")),
		lastSeen:    time.Now(),
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUsers(c *gin.Context) {
	type userView struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName,omitempty"`
		LastSeen    string `json:"lastSeen"`
		Status      string `json:"status"`
	}

	s.mu.Lock()
	users := make([]userView, 0, len(s.beats))
	for id, b := range s.beats {
		status := "online"
		if time.Since(b.lastSeen) > time.Minute {
			status = "idle"
		}
		users = append(users, userView{
			UserID:      id,
			DisplayName: b.displayName,
			LastSeen:    b.lastSeen.UTC().Format(time.RFC3339),
			Status:      status,
		})
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, users)
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
