package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"stream-moderator/dto"
)

// Supervisor is what the HTTP facade drives.
type Supervisor interface {
	Add(ctx context.Context, req dto.AddStreamRequest) dto.AddStreamResponse
	Remove(ctx context.Context, id string) dto.ActionResult
	Start(ctx context.Context, id string) dto.ActionResult
	Stop(ctx context.Context, id string) dto.ActionResult
	StartAll(ctx context.Context) []dto.ActionResult
	StopAll(ctx context.Context) []dto.ActionResult
	Status() []dto.StreamView
}

type ContentSource interface {
	Latest(limit int) (string, error)
}

type routes struct {
	ctx        context.Context
	supervisor Supervisor
	content    ContentSource
}

// NewRouter builds the HTTP facade. ctx carries the logger handlers use.
func NewRouter(ctx context.Context, sup Supervisor, content ContentSource, hub *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	addHealth(r)

	h := routes{ctx: ctx, supervisor: sup, content: content}
	api := r.Group("/api")
	api.GET("/streams", h.listStreams)
	api.POST("/streams", h.addStream)
	api.DELETE("/streams/:id", h.removeStream)
	api.POST("/streams/:id/start", h.startStream)
	api.POST("/streams/:id/stop", h.stopStream)
	api.POST("/streams/start-all", h.startAll)
	api.POST("/streams/stop-all", h.stopAll)
	api.GET("/inappropriate-content", h.latestContent)

	if hub != nil {
		r.GET("/ws", hub.ServeWS(ctx))
	}
	return r
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}

func statusOf(res dto.ActionResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case strings.HasPrefix(res.Message, "stream not found"):
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func (h routes) listStreams(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Status())
}

func (h routes) addStream(c *gin.Context) {
	var req dto.AddStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AddStreamResponse{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}

	resp := h.supervisor.Add(h.ctx, req)
	if !resp.Success {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h routes) removeStream(c *gin.Context) {
	res := h.supervisor.Remove(h.ctx, c.Param("id"))
	c.JSON(statusOf(res), res)
}

func (h routes) startStream(c *gin.Context) {
	res := h.supervisor.Start(h.ctx, c.Param("id"))
	c.JSON(statusOf(res), res)
}

func (h routes) stopStream(c *gin.Context) {
	res := h.supervisor.Stop(h.ctx, c.Param("id"))
	c.JSON(statusOf(res), res)
}

func bulk(results []dto.ActionResult) dto.BulkResult {
	out := dto.BulkResult{Success: true, Results: results}
	for _, r := range results {
		if !r.Success {
			out.Success = false
		}
	}
	if out.Results == nil {
		out.Results = []dto.ActionResult{}
	}
	return out
}

func (h routes) startAll(c *gin.Context) {
	c.JSON(http.StatusOK, bulk(h.supervisor.StartAll(h.ctx)))
}

func (h routes) stopAll(c *gin.Context) {
	c.JSON(http.StatusOK, bulk(h.supervisor.StopAll(h.ctx)))
}

func (h routes) latestContent(c *gin.Context) {
	content, err := h.content.Latest(0)
	if err != nil {
		zerolog.Ctx(h.ctx).Error().Err(err).Msg("failed to read moderation archive")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read moderation archive"})
		return
	}
	c.JSON(http.StatusOK, dto.ContentResponse{Content: content})
}
