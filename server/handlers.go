package server

import (
	"errors"
	"net/http"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/tool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Message: s.opts.Name,
		Version: s.opts.Version,
		Agents:  s.agentIDs(),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	initialized := true
	for _, st := range s.orch.ListAgents() {
		initialized = initialized && st.Initialized
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", AgentsInitialized: initialized})
}

// handlePose runs the workout workflow.
func (s *Server) handlePose(c echo.Context) error {
	var req PoseRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid pose request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ExerciseType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "exercise_type field is required")
	}

	sessionID := s.sessionID(c, req.SessionID)
	out := s.orch.OrchestrateWorkoutSession(c.Request().Context(), sessionID, req.Frames, req.ExerciseType, req.UserID)
	return c.JSON(http.StatusOK, out)
}

// handleFood runs the nutrition workflow.
func (s *Server) handleFood(c echo.Context) error {
	var req NutritionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid nutrition request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Image == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "image field is required")
	}

	sessionID := s.sessionID(c, req.SessionID)
	out := s.orch.OrchestrateNutritionAnalysis(c.Request().Context(), sessionID, req.Image, req.UserHints, req.UserID)
	return c.JSON(http.StatusOK, out)
}

// handleMind returns a mindfulness micro-lesson. A failed call is reported
// as 400 with the failure reason.
func (s *Server) handleMind(c echo.Context) error {
	var req MindfulnessRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid mindfulness request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Context == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "context field is required")
	}

	sessionID := s.sessionID(c, req.SessionID)
	resp := s.orch.ExecuteAgent(c.Request().Context(), core.AgentMindfulness, core.Task{
		Mindfulness: &core.MindfulnessTask{
			Context:        req.Context,
			MoodHint:       req.MoodHint,
			WorkoutSummary: req.WorkoutSummary,
		},
	}, sessionID, req.UserID)

	if !resp.Success {
		return echo.NewHTTPError(http.StatusBadRequest, resp.Error)
	}
	return c.JSON(http.StatusOK, resp.Payload.Mindfulness)
}

func (s *Server) handleExecute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid execute request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sessionID := s.sessionID(c, req.SessionID)
	resp := s.orch.ExecuteAgent(c.Request().Context(), core.AgentID(c.Param("agent")), req.Task, sessionID, req.UserID)
	return c.JSON(statusFor(resp), resp)
}

func (s *Server) handleMulti(c echo.Context) error {
	var req MultiRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid multi-agent request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Requests) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "requests field is required")
	}

	sessionID := s.sessionID(c, req.SessionID)
	resps := s.orch.ExecuteMultiAgent(c.Request().Context(), req.Requests, sessionID, req.UserID, req.Parallel)
	return c.JSON(http.StatusOK, MultiResponse{SessionID: sessionID, Responses: resps})
}

func (s *Server) handleAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.ListAgents())
}

func (s *Server) handleTools(c echo.Context) error {
	infos := []tool.Info{}
	if s.opts.Tools != nil {
		infos = s.opts.Tools.Infos()
	}
	return c.JSON(http.StatusOK, ToolsResponse{Tools: infos})
}

// handleSummary returns both session views; 404 only when neither exists.
func (s *Server) handleSummary(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var out SummaryResponse

	orch, err := s.orch.SessionSummary(ctx, id)
	switch {
	case err == nil:
		out.Orchestration = &orch
	case !errors.Is(err, core.ErrSessionNotFound):
		return err
	}

	mem, err := s.orch.Memory().SessionSummary(ctx, id)
	switch {
	case err == nil:
		out.Memory = &mem
	case !errors.Is(err, core.ErrSessionNotFound):
		return err
	}

	if out.Orchestration == nil && out.Memory == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	s.orch.Sessions().Delete(id)
	if err := s.orch.Memory().ClearSession(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearUser(c echo.Context) error {
	if err := s.orch.Memory().ClearUserMemory(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
