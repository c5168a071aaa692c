package api

import (
	"Agora/internal/api/config"
	"Agora/internal/api/middleware"
	"Agora/internal/pkg/consts"
	"Agora/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, group *HandlersGroup) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowOrigins))
	logger.SetupGin(r)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		postGroup := apiGroup.Group("/posts")
		{
			postGroup.GET("/:post_id", group.PostHandler.GetPost)
		}

		rankingGroup := apiGroup.Group("/ranking")
		{
			rankingGroup.GET("/hot-posts", group.RankingHandler.HotPosts)
			rankingGroup.GET("/stats", group.RankingHandler.Stats)

			// 需要登录 & 拥有 admin 角色
			adminGroup := rankingGroup.Group("")
			adminGroup.Use(auth, middleware.CheckRoles(consts.RoleAdmin))
			{
				adminGroup.POST("/refresh", group.RankingHandler.Refresh)
			}
		}

		messageGroup := apiGroup.Group("/messages")
		messageGroup.Use(auth)
		{
			messageGroup.POST("", group.MessageHandler.SendMessage)
			messageGroup.GET("/unread/count", group.MessageHandler.GetUnreadCount)
			messageGroup.GET("/unread/:user_id", group.MessageHandler.GetUnreadCountFrom)
			messageGroup.PUT("/read/:user_id", group.MessageHandler.MarkAsRead)
			messageGroup.PUT("/:message_id/read", group.MessageHandler.MarkOneAsRead)
			messageGroup.DELETE("/:message_id", group.MessageHandler.DeleteMessage)
		}
	}

	return r
}
