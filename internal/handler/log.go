// internal/handler/log.go

package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/orgoj/sentryroute/internal/route"
	"github.com/orgoj/sentryroute/internal/validation"
)

// LogRequestBody defines the structure for the /log endpoint request body
type LogRequestBody struct {
	Records []route.Record `json:"records" binding:"required,dive"`
}

// LogHandlerDependencies holds dependencies for the log handler
type LogHandlerDependencies struct {
	Routes    route.Flusher
	Config    *config.Config
	AppLogger *logger.AppLogger
	Limits    validation.Limits
	// Now defaults to time.Now; it stamps records sent without a timestamp.
	Now func() time.Time
}

// NewLogHandler creates a Gin handler function for the /log endpoint.
// A valid batch is handed to the log routes before the response is written.
func NewLogHandler(deps LogHandlerDependencies) gin.HandlerFunc {
	if deps.Routes == nil {
		panic("LogHandler requires non-nil Routes")
	}
	if deps.Config == nil {
		panic("LogHandler requires a non-nil Config")
	}
	if deps.AppLogger == nil {
		panic("LogHandler requires a non-nil AppLogger")
	}
	if deps.Limits == (validation.Limits{}) {
		deps.Limits = validation.DefaultLimits()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	limits := deps.Config.Server.RequestLimits

	return func(ctx *gin.Context) {
		// Limit request body size BEFORE parsing JSON
		if limits.MaxBodySize > 0 {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, int64(limits.MaxBodySize))
		}

		var reqBody LogRequestBody
		if err := ctx.ShouldBindJSON(&reqBody); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				deps.AppLogger.Warn("Log Handler: request body from IP %s exceeds %d bytes", ctx.ClientIP(), maxBytesErr.Limit)
				ctx.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			deps.AppLogger.Warn("Log Handler: JSON binding error for IP %s: %v", ctx.ClientIP(), err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if len(reqBody.Records) == 0 {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "records must not be empty"})
			return
		}
		if limits.MaxBatchSize > 0 && len(reqBody.Records) > limits.MaxBatchSize {
			deps.AppLogger.Warn("Log Handler: batch of %d records from IP %s exceeds max_batch_size %d", len(reqBody.Records), ctx.ClientIP(), limits.MaxBatchSize)
			ctx.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many records"})
			return
		}

		records, err := validation.SanitizeRecords(reqBody.Records, deps.Limits, deps.Now())
		if err != nil {
			deps.AppLogger.Warn("Log Handler: invalid record from IP %s: %v", ctx.ClientIP(), err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := deps.Routes.Flush(records); err != nil {
			deps.AppLogger.Error("Log Handler: forwarding %d records failed: %v", len(records), err)
			ctx.Header("X-Log-Status", "error")
			ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		ctx.Header("X-Log-Status", "success")
		ctx.JSON(http.StatusAccepted, gin.H{"accepted": len(records)})
	}
}
