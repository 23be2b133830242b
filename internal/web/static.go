package web

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServeEmbeddedHTML writes a single embedded HTML file.
func ServeEmbeddedHTML(contextGin *gin.Context, filesystem embed.FS, path string) {
	data, readErr := filesystem.ReadFile(path)
	if readErr != nil {
		contextGin.AbortWithStatus(http.StatusNotFound)
		return
	}
	contextGin.Header("Cache-Control", "no-store")
	contextGin.Data(http.StatusOK, "text/html; charset=utf-8", data)
}
