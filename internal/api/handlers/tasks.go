package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/todoprint/internal/core"
	"github.com/orrn/todoprint/internal/db"
)

type SubmitTaskRequest struct {
	Text     string          `json:"text" binding:"required"`
	Priority json.RawMessage `json:"priority"`
	Language string          `json:"language"`
	Source   string          `json:"source"`
}

type SubmitTaskResponse struct {
	Delivered bool   `json:"delivered"`
	Message   string `json:"message"`
	ID        int64  `json:"id"`
}

type TaskResponse struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Priority  int        `json:"priority"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	Language  string     `json:"language,omitempty"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	PrintedAt *time.Time `json:"printed_at,omitempty"`
}

type TaskHandler struct {
	service *core.Service
}

func NewTaskHandler(service *core.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

// SubmitTask accepts a task and reports whether it printed immediately or
// was queued for retry. Both outcomes are 200; only bad input or a storage
// failure produce an error status.
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Priority arrives as a number or a string; both get clamped, garbage
	// defaults to 3.
	priority := core.ParsePriority(string(req.Priority))
	var asString string
	if json.Unmarshal(req.Priority, &asString) == nil {
		priority = core.ParsePriority(asString)
	}

	meta := db.Metadata{Language: req.Language, Source: req.Source}
	if meta.Source == "" {
		meta.Source = "api"
	}

	result, err := h.service.Submit(c.Request.Context(), req.Text, priority, meta)
	if err != nil {
		if errors.Is(err, core.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save task"})
		return
	}

	c.JSON(http.StatusOK, SubmitTaskResponse{
		Delivered: result.Delivered,
		Message:   result.Message,
		ID:        result.ID,
	})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	task, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get task"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) ListRecent(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	tasks, err := h.service.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponses(tasks))
}

func (h *TaskHandler) ListPending(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)

	tasks, err := h.service.ListPending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending tasks"})
		return
	}

	c.JSON(http.StatusOK, toTaskResponses(tasks))
}

func (h *TaskHandler) QueueStatus(c *gin.Context) {
	status, err := h.service.QueueStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":          status.Total,
		"pending":        status.Pending,
		"printed":        status.Printed,
		"failed":         status.Failed,
		"today":          status.Today,
		"queue_running":  status.QueueRunning,
		"retry_interval": status.RetryInterval.Seconds(),
		"max_attempts":   status.MaxAttempts,
	})
}

func (h *TaskHandler) RetryFailed(c *gin.Context) {
	count, err := h.service.RetryAllFailed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset failed tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": count})
}

func (h *TaskHandler) ClearQueue(c *gin.Context) {
	count, err := h.service.ClearQueue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared": count})
}

func (h *TaskHandler) PurgePrinted(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
			return
		}
		days = n
	}

	count, err := h.service.PurgePrinted(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge printed tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": count})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		return def
	}
	return n
}

func toTaskResponse(t db.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Text:      t.Text,
		Priority:  t.Priority,
		Status:    string(t.Status),
		Attempts:  t.Attempts,
		LastError: t.LastError,
		Language:  t.Metadata.Language,
		Source:    t.Metadata.Source,
		CreatedAt: t.CreatedAt,
		PrintedAt: t.PrintedAt,
	}
}

func toTaskResponses(tasks []db.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}
