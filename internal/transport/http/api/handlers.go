package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"adpulse/internal/chat"
	"adpulse/internal/detect"
	"adpulse/internal/logger"
	"adpulse/internal/store"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	chat       *chat.Service
	classifier *detect.Classifier
	runs       store.RunLedger
}

func (h *handlers) Register(group *gin.RouterGroup) {
	group.POST("/analytics-chat", h.handleChat)
	group.POST("/detect", h.handleDetect)
	group.GET("/runs", h.handleRuns)
}

func (h *handlers) handleChat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	turn, err := h.chat.Prepare(c.Request.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, chat.ErrEmptyPrompt) {
			status = http.StatusBadRequest
		}
		logger.Warnf("analytics-chat: %v", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Response-Id", turn.ResponseID)
	c.Status(http.StatusOK)
	if err := turn.Stream(c.Request.Context(), c.Writer); err != nil {
		logger.Warnf("analytics-chat %s: stream aborted: %v", turn.ResponseID, err)
	}
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	detect.AIContentSignals
	Classification *detect.Classification `json:"classification,omitempty"`
}

func (h *handlers) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	resp := detectResponse{AIContentSignals: detect.DetectAIContentSignals(req.Text)}
	if h.classifier != nil {
		cl := h.classifier.Classify(req.Text)
		resp.Classification = &cl
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) handleRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	runs, err := h.runs.ListRuns(c.Request.Context(), strings.TrimSpace(c.Query("kind")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []store.ReportRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
