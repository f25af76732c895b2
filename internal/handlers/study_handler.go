package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/ArowuTest/study-profile-backend/internal/middleware"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/ArowuTest/study-profile-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StudyHandler handles the study profile endpoints
type StudyHandler struct {
	studyService services.StudyService
	logger       *zap.Logger
}

// NewStudyHandler creates a new StudyHandler
func NewStudyHandler(studyService services.StudyService, logger *zap.Logger) *StudyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyHandler{
		studyService: studyService,
		logger:       logger,
	}
}

// SurveyRequest is the body of POST /api/study/survey
type SurveyRequest struct {
	Survey    string `json:"survey" binding:"required"`
	Completed *bool  `json:"completed"`
}

// CompleteSurveyRequest is the body of the older POST /api/study/complete-survey
type CompleteSurveyRequest struct {
	SurveyKey string `json:"surveyKey" binding:"required"`
}

// DebugResetRequest is the optional body of POST /api/study/debug/reset
type DebugResetRequest struct {
	HardDelete *bool `json:"hardDelete"`
}

// DebugSetRequest is the body of POST /api/study/debug/set
type DebugSetRequest struct {
	Count *int    `json:"count" binding:"required"`
	Group *string `json:"group"`
}

// GetState handles GET /api/study/state
func (h *StudyHandler) GetState(c *gin.Context) {
	userID, username := middleware.CurrentUser(c)
	profile, err := h.studyService.GetUserState(c.Request.Context(), userID, username)
	if err != nil {
		h.respondError(c, "get state", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// RegisterLogin handles POST /api/study/login
func (h *StudyHandler) RegisterLogin(c *gin.Context) {
	userID, username := middleware.CurrentUser(c)
	profile, err := h.studyService.RegisterLogin(c.Request.Context(), userID, username)
	if err != nil {
		h.respondError(c, "register login", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SetSurvey handles POST /api/study/survey. completed defaults to true.
func (h *StudyHandler) SetSurvey(c *gin.Context) {
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	h.setSurvey(c, req.Survey, completed)
}

// CompleteSurvey handles POST /api/study/complete-survey
func (h *StudyHandler) CompleteSurvey(c *gin.Context) {
	var req CompleteSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	h.setSurvey(c, req.SurveyKey, true)
}

func (h *StudyHandler) setSurvey(c *gin.Context, surveyKey string, completed bool) {
	userID, _ := middleware.CurrentUser(c)
	profile, err := h.studyService.SetSurveyStatus(c.Request.Context(), userID, surveyKey, completed)
	if err != nil {
		h.respondError(c, "set survey", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DebugReset handles POST /api/study/debug/reset. An empty body is a hard reset.
func (h *StudyHandler) DebugReset(c *gin.Context) {
	var req DebugResetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}
	hardDelete := true
	if req.HardDelete != nil {
		hardDelete = *req.HardDelete
	}

	userID, username := middleware.CurrentUser(c)
	profile, err := h.studyService.DebugResetUser(c.Request.Context(), userID, username, hardDelete)
	if err != nil {
		h.respondError(c, "debug reset", err)
		return
	}
	h.logger.Info("study profile reset", zap.String("userId", userID), zap.Bool("hardDelete", hardDelete))
	c.JSON(http.StatusOK, profile)
}

// DebugSet handles POST /api/study/debug/set
func (h *StudyHandler) DebugSet(c *gin.Context) {
	var req DebugSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	userID, username := middleware.CurrentUser(c)
	profile, err := h.studyService.DebugSetState(c.Request.Context(), userID, *req.Count, req.Group, username)
	if err != nil {
		h.respondError(c, "debug set", err)
		return
	}
	h.logger.Info("study profile overridden", zap.String("userId", userID), zap.Int("loginCount", *req.Count))
	c.JSON(http.StatusOK, profile)
}

// respondError maps service errors onto status codes
func (h *StudyHandler) respondError(c *gin.Context, op string, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case repositories.IsThrottled(err):
		if wait, ok := repositories.RetryAfter(err); ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		} else {
			c.Header("Retry-After", "1")
		}
		h.logger.Warn("store throttled", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store is busy, try again"})
	default:
		h.logger.Error("study operation failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
	}
}
