package handler

import (
	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/middleware"
	"rag-chatbot-go/pkg/token"
)

// Handlers 汇总路由需要的全部处理器。
type Handlers struct {
	Document *DocumentHandler
	Search   *SearchHandler
	Chat     *ChatHandler
	System   *SystemHandler
}

// NewRouter 注册 /api/v1 下的全部路由。
func NewRouter(h Handlers, jwtManager *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", h.System.Health)
		apiV1.GET("/chat/ws/:token", h.Chat.Stream)

		auth := apiV1.Group("/")
		auth.Use(middleware.AuthMiddleware(jwtManager))
		{
			documents := auth.Group("/documents")
			{
				documents.POST("/upload", h.Document.Upload)
				documents.GET("", h.Document.List)
				documents.DELETE("/:id", h.Document.Delete)
				documents.GET("/stats/organization", h.Document.OrganizationStats)
			}

			auth.GET("/search", h.Search.Search)
			auth.POST("/chat", h.Chat.Chat)
			auth.GET("/system/stats", h.System.Stats)

			admin := auth.Group("/system")
			admin.Use(middleware.AdminAuthMiddleware())
			{
				admin.POST("/reindex", h.System.Reindex)
				admin.POST("/cleanup", h.System.Cleanup)
			}
		}
	}
	return r
}
