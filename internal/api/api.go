// Package api is the HTTP adapter over the storage engine: multipart
// uploads in, engine error kinds mapped to status codes out.
package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filedepot/internal/engine"
	"filedepot/internal/storage"
	"filedepot/internal/validation"
)

type API struct {
	engine *engine.Engine
	apiKey string
}

// New builds the HTTP adapter. An empty apiKey disables authentication.
func New(eng *engine.Engine, apiKey string) *API {
	return &API{engine: eng, apiKey: apiKey}
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.health)

	api := router.Group("/api")
	if a.apiKey != "" {
		api.Use(a.authMiddleware())
	}

	api.GET("/files", a.listFiles)
	api.POST("/files", a.uploadFile)
	api.POST("/files/batch", a.uploadFiles)
	api.GET("/files/:name", a.downloadFile)
	api.DELETE("/files/:name", a.deleteFile)
}

func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Key") != a.apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) listFiles(c *gin.Context) {
	records, err := a.engine.List(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": records, "count": len(records)})
}

func (a *API) uploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	md, err := a.engine.Store(c.Request.Context(), submissionFrom(file, header))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, md)
}

func (a *API) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	var subs []*engine.Submission
	var opened []multipart.File
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open %s: %v", header.Filename, err)})
			return
		}
		opened = append(opened, f)
		subs = append(subs, submissionFrom(f, header))
	}
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	stored, err := a.engine.StoreMultiple(c.Request.Context(), subs)
	if err != nil {
		var batch *engine.BatchError
		if errors.As(err, &batch) {
			items := make([]gin.H, len(batch.Items))
			for i, item := range batch.Items {
				items[i] = gin.H{"file": item.Filename, "error": item.Err.Error()}
			}
			c.JSON(http.StatusBadRequest, gin.H{"stored": len(stored), "errors": items})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stored": len(stored), "files": stored})
}

func (a *API) downloadFile(c *gin.Context) {
	name := c.Param("name")
	md, rc, err := a.engine.Retrieve(c.Request.Context(), name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	defer rc.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition(md.ContentType), md.OriginalName),
	}
	c.DataFromReader(http.StatusOK, md.Size, md.ContentType, rc, headers)
}

func (a *API) deleteFile(c *gin.Context) {
	name := c.Param("name")
	if err := a.engine.Delete(c.Request.Context(), name); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "file deleted", "name": name})
}

// disposition picks inline rendering for content-type families browsers
// display natively; everything else downloads as an attachment.
func disposition(contentType string) string {
	if strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "text/") ||
		contentType == "application/pdf" {
		return "inline"
	}
	return "attachment"
}

var validationErrs = []error{
	validation.ErrInvalidSubmission,
	validation.ErrSizeExceeded,
	validation.ErrUnsupportedMimeType,
	validation.ErrInvalidFilename,
	validation.ErrDisallowedExtension,
	validation.ErrMimeExtensionMismatch,
	storage.ErrPathEscape,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrDuplicateFile):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	}
	for _, verr := range validationErrs {
		if errors.Is(err, verr) {
			return http.StatusBadRequest
		}
	}
	// Backend and consistency failures are server-side faults.
	return http.StatusInternalServerError
}

func submissionFrom(f multipart.File, header *multipart.FileHeader) *engine.Submission {
	return &engine.Submission{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     f,
	}
}
