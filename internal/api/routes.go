package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/adapters/store"
	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
	"github.com/voxhall/voxhall/internal/auth"
	"github.com/voxhall/voxhall/internal/websocket"
	"github.com/voxhall/voxhall/usecase/voice"
)

const defaultTranscriptLimit = 50

// AgentRegistrar is implemented by stores that accept agent
// registration through the API.
type AgentRegistrar interface {
	RegisterAgent(agent *repositories.AgentConfig) error
}

// TranscriptDropper is implemented by sinks that can discard a deleted
// chamber's transcript.
type TranscriptDropper interface {
	Drop(ctx context.Context, chamberID string) error
}

// Server wires the HTTP control plane over the voice core.
type Server struct {
	session       *voice.Session
	controller    *voice.Controller
	chambers      repositories.ChamberStore
	registrar     AgentRegistrar
	sink          repositories.TranscriptSink
	authenticator *auth.Authenticator
	hub           *websocket.Hub
	logger        *zap.Logger
}

// NewServer creates the API server.
func NewServer(
	session *voice.Session,
	controller *voice.Controller,
	chambers repositories.ChamberStore,
	registrar AgentRegistrar,
	sink repositories.TranscriptSink,
	authenticator *auth.Authenticator,
	hub *websocket.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		session:       session,
		controller:    controller,
		chambers:      chambers,
		registrar:     registrar,
		sink:          sink,
		authenticator: authenticator,
		hub:           hub,
		logger:        logger,
	}
}

// InitRoutes registers all API routes.
func (s *Server) InitRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voxhall",
		})
	})

	e.POST("/api/v1/auth/token", s.issueToken)

	v1 := e.Group("/api/v1", s.requireToken)

	v1.POST("/agents", s.registerAgent)

	v1.POST("/chambers", s.createChamber)
	v1.GET("/chambers/:id", s.getChamber)
	v1.PUT("/chambers/:id", s.updateChamber)
	v1.DELETE("/chambers/:id", s.deleteChamber)
	v1.GET("/chambers/:id/messages", s.getTranscript)
	v1.POST("/chambers/:id/messages", s.postMessage)

	v1.GET("/voice/state", s.getVoiceState)
	v1.POST("/voice/activate", s.activateVoice)
	v1.POST("/voice/deactivate", s.deactivateVoice)
	v1.POST("/voice/interrupt", s.interruptVoice)
	v1.POST("/voice/mic", s.setMicMuted)
	v1.POST("/voice/speaker", s.setSpeakerMuted)
	v1.POST("/voice/autolisten", s.setAutoListen)

	e.GET("/ws", s.eventStream)
}

func (s *Server) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ClientID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client ID is required",
		})
	}

	token, err := s.authenticator.GenerateClientToken(req.ClientID)
	if err != nil {
		s.logger.Error("Failed to generate client token",
			zap.String("client_id", req.ClientID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		ClientID:  req.ClientID,
	})
}

// requireToken validates the bearer token on protected routes.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Bearer token is required",
			})
		}
		claims, err := s.authenticator.ValidateToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired token",
			})
		}
		c.Set("client_id", claims.ClientID)
		return next(c)
	}
}

func (s *Server) registerAgent(c echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Agent name is required",
		})
	}

	agent := &repositories.AgentConfig{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Voice: repositories.AgentVoiceConfig{
			PreferredEngine: entities.VoiceEngine(req.PreferredEngine),
			LocalModelID:    req.LocalModelID,
			CloudVoiceID:    req.CloudVoiceID,
			SystemVoiceID:   req.SystemVoiceID,
		},
	}
	if err := s.registrar.RegisterAgent(agent); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "registration_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusCreated, agent)
}

func (s *Server) createChamber(c echo.Context) error {
	var req ChamberRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	style := entities.DiscussionStyle(req.Style)
	if req.Style == "" {
		style = entities.DiscussionStyleRoundRobin
	}
	maxResponses := 0
	if req.MaxResponsesPerRound != nil {
		maxResponses = *req.MaxResponsesPerRound
	}
	chamber, err := entities.NewChamber(req.Name, req.AgentIDs, style, maxResponses)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_chamber",
			Message: err.Error(),
		})
	}
	if err := s.chambers.CreateChamber(c.Request().Context(), chamber); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "creation_failed",
			Message: err.Error(),
		})
	}

	s.logger.Info("Chamber created",
		zap.String("chamber_id", chamber.ID),
		zap.Int("agents", len(chamber.AgentIDs)))
	return c.JSON(http.StatusCreated, chamber)
}

func (s *Server) getChamber(c echo.Context) error {
	chamber, err := s.chambers.Chamber(c.Request().Context(), c.Param("id"))
	if err != nil {
		return chamberError(c, err)
	}
	return c.JSON(http.StatusOK, chamber)
}

func (s *Server) updateChamber(c echo.Context) error {
	ctx := c.Request().Context()
	chamber, err := s.chambers.Chamber(ctx, c.Param("id"))
	if err != nil {
		return chamberError(c, err)
	}

	var req ChamberRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.Name != "" {
		chamber.Name = req.Name
	}
	if req.AgentIDs != nil {
		chamber.AgentIDs = req.AgentIDs
	}
	if req.Style != "" {
		chamber.Style = entities.DiscussionStyle(req.Style)
	}
	if req.MaxResponsesPerRound != nil {
		chamber.MaxResponsesPerRound = *req.MaxResponsesPerRound
	}

	if err := s.chambers.UpdateChamber(ctx, chamber); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "update_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, chamber)
}

// deleteChamber interrupts any round bound to the chamber before the
// chamber and its transcript disappear.
func (s *Server) deleteChamber(c echo.Context) error {
	ctx := c.Request().Context()
	chamberID := c.Param("id")

	s.controller.InterruptChamber(chamberID)

	if err := s.chambers.DeleteChamber(ctx, chamberID); err != nil {
		return chamberError(c, err)
	}
	if dropper, ok := s.sink.(TranscriptDropper); ok {
		if err := dropper.Drop(ctx, chamberID); err != nil {
			s.logger.Warn("Failed to drop transcript",
				zap.String("chamber_id", chamberID), zap.Error(err))
		}
	}

	s.logger.Info("Chamber deleted", zap.String("chamber_id", chamberID))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getTranscript(c echo.Context) error {
	ctx := c.Request().Context()
	chamberID := c.Param("id")

	if _, err := s.chambers.Chamber(ctx, chamberID); err != nil {
		return chamberError(c, err)
	}

	limit := defaultTranscriptLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	msgs, err := s.sink.Recent(ctx, chamberID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "transcript_unavailable",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, TranscriptResponse{ChamberID: chamberID, Messages: msgs})
}

// postMessage starts a round from a typed message. Typed input skips
// the acoustic feedback filter; only microphone transcripts can echo.
func (s *Server) postMessage(c echo.Context) error {
	ctx := c.Request().Context()
	chamber, err := s.chambers.Chamber(ctx, c.Param("id"))
	if err != nil {
		return chamberError(c, err)
	}

	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Message content is required",
		})
	}

	s.controller.StartRound(ctx, chamber, req.Content)
	return c.JSON(http.StatusAccepted, map[string]string{
		"status":     "round_started",
		"chamber_id": chamber.ID,
	})
}

func (s *Server) getVoiceState(c echo.Context) error {
	return c.JSON(http.StatusOK, VoiceStateResponse{
		State:             s.session.State(),
		Active:            s.session.IsActive(),
		ChamberMode:       s.session.ChamberMode(),
		ActiveChamberID:   s.session.ActiveChamberID(),
		ActiveAgentID:     s.session.ActiveAgentID(),
		RespondingAgentID: s.session.RespondingAgentID(),
		LiveTranscript:    s.session.LiveTranscript(),
		MicMuted:          s.session.MicMuted(),
		SpeakerMuted:      s.session.SpeakerMuted(),
		AutoListen:        s.session.AutoListen(),
		Levels:            s.session.Levels(),
	})
}

func (s *Server) activateVoice(c echo.Context) error {
	ctx := c.Request().Context()
	var req ActivateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ChamberID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Chamber ID is required",
		})
	}
	if _, err := s.chambers.Chamber(ctx, req.ChamberID); err != nil {
		return chamberError(c, err)
	}

	if err := s.session.Activate(ctx, req.ChamberID, req.ActiveAgentID, req.ChamberMode); err != nil {
		s.logger.Error("Voice activation failed",
			zap.String("chamber_id", req.ChamberID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "activation_failed",
			Message: err.Error(),
		})
	}
	return s.getVoiceState(c)
}

func (s *Server) deactivateVoice(c echo.Context) error {
	s.controller.Pause()
	return s.getVoiceState(c)
}

func (s *Server) interruptVoice(c echo.Context) error {
	s.controller.Interrupt()
	return s.getVoiceState(c)
}

func (s *Server) setMicMuted(c echo.Context) error {
	var req MuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := s.session.SetMicMuted(c.Request().Context(), req.Muted); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "mic_toggle_failed",
			Message: err.Error(),
		})
	}
	return s.getVoiceState(c)
}

func (s *Server) setSpeakerMuted(c echo.Context) error {
	var req MuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	s.session.SetSpeakerMuted(req.Muted)
	return s.getVoiceState(c)
}

func (s *Server) setAutoListen(c echo.Context) error {
	var req AutoListenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	s.session.SetAutoListen(req.Enabled)
	return s.getVoiceState(c)
}

// eventStream upgrades an authenticated request onto the event hub.
func (s *Server) eventStream(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		token = c.QueryParam("token")
	}
	if token == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Token is required",
		})
	}
	claims, err := s.authenticator.ValidateToken(token)
	if err != nil {
		s.logger.Warn("Event stream rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired token",
		})
	}
	return websocket.HandleWebSocket(s.hub, c, claims.ClientID, s.logger)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func chamberError(c echo.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: err.Error(),
	})
}
