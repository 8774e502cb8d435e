// Package api wires the thin HTTP surface over the print-queue core.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/api/handlers"
	"github.com/orrn/todoprint/internal/core"
)

func NewRouter(service *core.Service, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tasks := handlers.NewTaskHandler(service)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/tasks", tasks.SubmitTask)
		apiGroup.GET("/tasks", tasks.ListRecent)
		apiGroup.GET("/tasks/pending", tasks.ListPending)
		apiGroup.GET("/tasks/:id", tasks.GetTask)
		apiGroup.GET("/status", tasks.QueueStatus)
		apiGroup.POST("/queue/retry", tasks.RetryFailed)
		apiGroup.POST("/queue/clear", tasks.ClearQueue)
		apiGroup.POST("/queue/purge", tasks.PurgePrinted)
	}

	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
