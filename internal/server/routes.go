package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/dispatch"
	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/models"
	"github.com/zulandar/switchyard/internal/store"
)

// registerRoutes sets up all routes on the Gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	router.GET("/healthz", handleHealthz(opts.Store))

	api := router.Group("/api", authRequired(opts.Gate))
	api.POST("/dispatch/scheduled", handleDispatchScheduled(opts.Service))
	api.POST("/dispatch/drain", handleDrainQueue(opts.Service))
	api.POST("/runs/complete", handleCompleteRun(opts))
	api.GET("/users/:id/queue", handleQueueSnapshot(opts.Store))
	api.GET("/events", handleSSE(opts.Broker))
}

// authRequired rejects requests without a valid internal-service credential
// before any handler state is touched.
func authRequired(gate *dispatch.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gate.Authorize(c.GetHeader(TokenHeader)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// statusFor maps dispatch errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, dispatch.ErrInvalidTarget):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func handleHealthz(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := st.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleDispatchScheduled(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.ScheduledRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Token = c.GetHeader(TokenHeader)

		ack, err := svc.DispatchScheduled(req)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ack)
	}
}

func handleDrainQueue(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.DrainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Token = c.GetHeader(TokenHeader)

		ack, err := svc.DrainQueue(req)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ack)
	}
}

// completeRunRequest is the runner's completion callback payload.
type completeRunRequest struct {
	ThreadChatID string `json:"thread_chat_id" binding:"required"`
	Outcome      string `json:"outcome" binding:"required"`
}

func handleCompleteRun(opts Opts) gin.HandlerFunc {
	svc, st := opts.Service, opts.Store
	return func(c *gin.Context) {
		var req completeRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		chat, err := st.ChatByID(req.ThreadChatID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown thread chat"})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		if err := st.CompleteRun(req.ThreadChatID, req.Outcome); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if opts.Broker != nil {
			if err := opts.Broker.Publish(events.Event{
				Type:         events.TypeRunComplete,
				UserID:       chat.UserID,
				ThreadID:     chat.ThreadID,
				ThreadChatID: chat.ID,
				Reason:       req.Outcome,
			}); err != nil {
				log.Printf("server: publish completion for %s: %v", chat.ID, err)
			}
		}

		// The user's run slot just freed up; keep the queue moving without
		// waiting for the next sweep.
		ack, err := svc.DrainQueue(dispatch.DrainRequest{
			Token:  c.GetHeader(TokenHeader),
			UserID: chat.UserID,
		})
		if err != nil {
			log.Printf("server: post-completion drain for %s: %v", chat.UserID, err)
			ack = &dispatch.Ack{Reason: "post-completion drain failed"}
		}
		c.JSON(http.StatusOK, gin.H{"completed": req.ThreadChatID, "drain": ack})
	}
}

// queueSnapshot is the read-only view of one user's dispatch state.
type queueSnapshot struct {
	UserID  string              `json:"user_id"`
	Running *models.ActiveRun   `json:"running,omitempty"`
	Queued  []models.ThreadChat `json:"queued"`
}

func handleQueueSnapshot(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")
		ok, err := st.UserExists(userID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}

		snap := queueSnapshot{UserID: userID}
		if run, err := st.RunningChat(userID); err == nil {
			snap.Running = run
		} else if !errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		queued, err := st.QueuedChats(userID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		snap.Queued = queued

		c.JSON(http.StatusOK, snap)
	}
}
