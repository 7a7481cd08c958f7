package routes

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docqa-platform/internal/config"
	"docqa-platform/internal/queue"
	"docqa-platform/internal/vectorstore"
	"docqa-platform/middleware"
	"docqa-platform/models"
	"docqa-platform/services"
	"docqa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type DocumentDeps struct {
	Config    *config.Config
	Documents services.DocumentStore
	Vectors   vectorstore.Store
	Queue     *asynq.Client
	Export    *services.ExportService
}

func SetupDocumentRoutes(router *gin.Engine, deps DocumentDeps, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	// Upload: validate, persist to disk, acknowledge, ingest async
	api.POST("/upload", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file is required", gin.H{"error": err.Error()})
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !extensionAllowed(deps.Config.AllowedExts, ext) {
			utils.RespondWithBadRequest(c,
				fmt.Sprintf("Invalid file type: %s. Allowed: %s", ext, strings.Join(deps.Config.AllowedExts, ", ")), nil)
			return
		}
		if fileHeader.Size > deps.Config.MaxFileSize {
			utils.RespondWithBadRequest(c, "File too large. Max 50MB", nil)
			return
		}

		// The document ID is fixed before indexing so every chunk and
		// the metadata row share it.
		docID := uuid.NewString()
		ownerDir := filepath.Join(deps.Config.StorageDir, vectorstore.CollectionName(email))
		if err := os.MkdirAll(ownerDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Upload failed", nil)
			return
		}
		storedPath := filepath.Join(ownerDir, docID+ext)

		if err := c.SaveUploadedFile(fileHeader, storedPath); err != nil {
			utils.RespondWithInternalError(c, "Upload failed", nil)
			return
		}

		task, err := queue.NewIngestTask(email, docID, storedPath, fileHeader.Filename)
		if err != nil {
			os.Remove(storedPath)
			utils.RespondWithInternalError(c, "Upload failed", nil)
			return
		}
		if _, err := deps.Queue.Enqueue(task); err != nil {
			os.Remove(storedPath)
			utils.RespondWithInternalError(c, "Failed to queue file for processing", nil)
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			Message:  "File uploaded & processing started",
			Filename: fileHeader.Filename,
			SizeKB:   fileHeader.Size / 1024,
			Status:   "processing",
		})
	})

	// List the caller's documents, newest first
	api.GET("/documents", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		docs, err := deps.Documents.ListByOwner(c.Request.Context(), email)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	})

	// Export the document inventory as a spreadsheet
	api.GET("/documents/export", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		buf, err := deps.Export.ExportDocuments(c.Request.Context(), email)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to export documents", nil)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=documents.xlsx")
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	})

	api.GET("/documents/:id", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)

		doc, err := deps.Documents.GetByID(c.Request.Context(), email, c.Param("id"))
		if errors.Is(err, services.ErrNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch document", nil)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Delete removes vectors first, then the file, then the row, so a
	// partial failure can be retried without leaving hidden vectors.
	api.DELETE("/documents/:id", func(c *gin.Context) {
		email := middleware.GetUserEmail(c)
		id := c.Param("id")
		ctx := c.Request.Context()

		doc, err := deps.Documents.GetByID(ctx, email, id)
		if errors.Is(err, services.ErrNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch document", nil)
			return
		}

		collection := vectorstore.CollectionName(email)
		filter := &vectorstore.Filter{DocumentID: doc.ID}
		if err := deps.Vectors.Delete(ctx, collection, filter); err != nil {
			utils.RespondWithInternalError(c, "Failed to remove document from the index", nil)
			return
		}

		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove stored file %s: %v", doc.FilePath, err)
		}

		if err := deps.Documents.Delete(ctx, email, id); err != nil && !errors.Is(err, services.ErrNotFound) {
			utils.RespondWithInternalError(c, "Failed to delete document record", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "id": id})
	})
}

func extensionAllowed(allowed []string, ext string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}
