package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"docqa-platform/middleware"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"

	"github.com/gin-gonic/gin"
)

// doneMarker is the literal terminal SSE line every stream ends with.
const doneMarker = "data: [DONE]\n\n"

func SetupChatRoutes(router *gin.Engine, composer *services.Composer, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	api.POST("/chat", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			utils.RespondWithInternalError(c, "Streaming not supported", nil)
			return
		}

		// The request context cancels the model stream when the client
		// disconnects mid-answer.
		err := composer.Stream(c.Request.Context(), email, req, func(ev services.StreamEvent) error {
			line, err := renderEvent(ev)
			if err != nil {
				return err
			}
			if _, err := c.Writer.WriteString(line); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
		if err != nil {
			// Stream already started; nothing useful can be sent now.
			return
		}
	})
}

// renderEvent serializes one composer event as an SSE data line.
func renderEvent(ev services.StreamEvent) (string, error) {
	switch ev.Kind {
	case services.EventDone:
		return doneMarker, nil
	case services.EventContent:
		payload, err := json.Marshal(gin.H{"content": ev.Content})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("data: %s\n\n", payload), nil
	case services.EventCitations:
		payload, err := json.Marshal(gin.H{"citations": ev.Citations})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("data: %s\n\n", payload), nil
	case services.EventError:
		payload, err := json.Marshal(gin.H{"error": ev.Content})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("data: %s\n\n", payload), nil
	default:
		return "", fmt.Errorf("unknown stream event kind %q", ev.Kind)
	}
}
