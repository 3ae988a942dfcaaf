package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/api/health", c.health.HealthCheck)

	auth := middleware.AuthMiddleware(cfg)

	// 1. 内容互动与计时
	a.registerContentRoutes(router, c, cfg)

	// 2. 需要登录的个人接口
	authGroup := router.Group("/api")
	authGroup.Use(auth)
	{
		authGroup.GET("/me/learning-stats", c.interaction.LearningStats)
		authGroup.GET("/me/time-statistics", c.timeTracking.TimeStatistics)

		a.registerLearningPathRoutes(authGroup, c)
	}

	// 3. 管理员接口
	admin := router.Group("/api/admin")
	admin.Use(auth, middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/time-tracking/sweep", c.timeTracking.SweepStale)
	}
}

func (a *App) registerContentRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	content := router.Group("/api/content/:kind/:id")

	// 统计可选认证，游客看不到自己的状态
	content.GET("/stats", middleware.TryAuthMiddleware(cfg), c.interaction.Stats)

	authorized := content.Group("")
	authorized.Use(middleware.AuthMiddleware(cfg))
	{
		authorized.POST("/vote", c.interaction.Vote)
		authorized.POST("/save", c.interaction.Save)
		authorized.PUT("/complete", c.interaction.Complete)
		authorized.DELETE("/complete", c.interaction.RemoveComplete)
		authorized.PUT("/rating", c.interaction.Rate)
		authorized.POST("/report", c.interaction.Report)

		authorized.GET("/session-time", c.timeTracking.CurrentTime)
		authorized.POST("/session-time", c.timeTracking.UpdateSessionTime)
		authorized.POST("/sessions/save", c.timeTracking.SaveSession)
		authorized.POST("/sessions", c.timeTracking.SaveCompletedSession)
		authorized.GET("/sessions", c.timeTracking.History)
		authorized.DELETE("/sessions/:sessionId", c.timeTracking.DeleteSession)
	}
}

func (a *App) registerLearningPathRoutes(group *gin.RouterGroup, c *controllers) {
	paths := group.Group("/learning-paths")
	{
		paths.GET("/mine", c.learningPath.Mine)
		paths.GET("/overview", c.learningPath.Overview)
		paths.POST("/:id/start", c.learningPath.Start)
		paths.GET("/:id/stats", c.learningPath.Stats)
	}

	group.POST("/chapters/:id/start", c.learningPath.StartChapter)
	group.POST("/videos/:id/progress", c.learningPath.VideoProgress)

	group.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	group.POST("/quizzes/attempts/:attemptId/submit", c.quiz.SubmitAttempt)
}
