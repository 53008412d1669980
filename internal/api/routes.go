package api

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"mcqgenerator/internal/api/handlers"
)

// Options are the router settings taken from the process configuration.
type Options struct {
	FrontendURL    string
	MaxUploadBytes int64
}

// NewRouter builds the engine with the middleware chain and every route.
func NewRouter(handler *handlers.Handler, store sessions.Store, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORSMiddleware(opts.FrontendURL))
	router.Use(sessions.Sessions(StoreName, store), SessionMiddleware())
	SetupRoutes(router, handler, opts)
	return router
}

// SetupRoutes sets up the API routes
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, opts Options) {
	// Form-style endpoints kept at the top level for existing clients.
	router.POST("/upload", MaxBodySize(opts.MaxUploadBytes), handler.HandleUpload)
	router.POST("/generate_mcqs", handler.HandleGenerateMCQs)
	router.GET("/results/:filename", handler.HandleDownloadResult)

	api := router.Group("/api")
	{
		api.GET("/health", handler.HandleHealth)
		api.POST("/upload", MaxBodySize(opts.MaxUploadBytes), handler.HandleUpload)
		api.POST("/generate", handler.HandleGenerate)
		api.GET("/results", handler.HandleGetResults)
		api.POST("/regenerate", handler.HandleRegenerate)
		api.GET("/history", handler.HandleHistory)
	}
}
