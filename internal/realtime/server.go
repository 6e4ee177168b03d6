package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	tokens "github.com/ArowuTest/tambola-backend/pkg/jwt"
)

// ServerConfig holds websocket endpoint settings
type ServerConfig struct {
	AllowedOrigins    []string
	RequireAuth       bool
	SendBuffer        int
	MessagesPerSecond float64
	Burst             int
}

// Server upgrades HTTP requests into hub clients
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	tokens     *tokens.TokenService
	cfg        ServerConfig
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer creates a Server. tokenService may be nil when no JWT secret is configured.
func NewServer(hub *Hub, dispatcher *Dispatcher, tokenService *tokens.TokenService, cfg ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		hub:        hub,
		dispatcher: dispatcher,
		tokens:     tokenService,
		cfg:        cfg,
		logger:     logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handle is the gin handler for GET /ws
func (s *Server) Handle(c *gin.Context) {
	identity, err := s.authenticate(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), burst)
	}

	client := newClient(uuid.NewString(), identity, conn, s.hub, limiter, s.cfg.SendBuffer, s.logger)
	s.hub.register(client)

	go client.writePump()
	go client.readPump(s.dispatcher)
}

func (s *Server) authenticate(r *http.Request) (Identity, error) {
	raw := tokens.TokenFromRequest(r)
	if raw == "" || s.tokens == nil {
		if s.cfg.RequireAuth {
			return Identity{}, tokens.ErrInvalidToken
		}
		id := "guest-" + uuid.NewString()
		return Identity{UserID: id, Name: "Guest"}, nil
	}

	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:  claims.UserID(),
		Name:    claims.Name,
		IsAdmin: claims.IsAdmin(),
	}, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	normalized := strings.TrimRight(u.Scheme+"://"+u.Host, "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), normalized) {
			return true
		}
	}
	// Same-host requests are always accepted
	return strings.EqualFold(u.Host, r.Host)
}
