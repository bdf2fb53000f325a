package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/service"
)

// Handler обрабатывает HTTP-запросы StoryForge API.
type Handler struct {
	authService       service.AuthService
	storyService      service.StoryService
	flowService       service.FlowService
	suggestionService service.SuggestionService
	bulkService       service.BulkService
	blogService       service.BlogService
	contactService    service.ContactService
	bus               *events.Bus
	logger            *zap.Logger
}

func NewHandler(
	authService service.AuthService,
	storyService service.StoryService,
	flowService service.FlowService,
	suggestionService service.SuggestionService,
	bulkService service.BulkService,
	blogService service.BlogService,
	contactService service.ContactService,
	bus *events.Bus,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		authService:       authService,
		storyService:      storyService,
		flowService:       flowService,
		suggestionService: suggestionService,
		bulkService:       bulkService,
		blogService:       blogService,
		contactService:    contactService,
		bus:               bus,
		logger:            logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	// Публичные маршруты
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
	}
	api.POST("/contact", h.SubmitContactForm)

	blog := api.Group("/blog")
	{
		blog.GET("/posts", h.ListPublishedPosts)
		blog.GET("/posts/:slug", h.GetPostBySlug)
	}

	// Маршруты, требующие аутентификации
	authorized := api.Group("")
	authorized.Use(h.AuthMiddleware())
	{
		authorized.POST("/auth/logout", h.Logout)
		authorized.GET("/me", h.Me)
		authorized.PUT("/me", h.UpdateProfile)
		authorized.POST("/support", h.SubmitSupportRequest)

		projects := authorized.Group("/projects")
		{
			projects.POST("", h.CreateProject)
			projects.GET("", h.ListProjects)
			projects.GET("/:id", h.GetProject)
			projects.PUT("/:id", h.UpdateProject)
			projects.DELETE("/:id", h.DeleteProject)
		}

		stories := authorized.Group("/stories")
		{
			stories.POST("", h.CreateStory)
			stories.GET("", h.ListStories)
			stories.GET("/:id", h.GetStory)
			stories.PUT("/:id", h.UpdateStory)
			stories.DELETE("/:id", h.DeleteStory)
		}

		flow := authorized.Group("/flow/sessions")
		{
			flow.POST("", h.StartFlowSession)
			flow.GET("/:id", h.GetFlowState)
			flow.POST("/:id/answer", h.SubmitFlowAnswer)
			flow.POST("/:id/back", h.FlowBack)
			flow.POST("/:id/cancel", h.CancelFlow)
			flow.POST("/:id/reset", h.ResetFlow)
			flow.DELETE("/:id", h.DestroyFlowSession)
		}

		authorized.POST("/suggestions", h.Suggest)
		authorized.POST("/stories/bulk", h.BulkGenerate)

		adminBlog := authorized.Group("/blog")
		{
			adminBlog.GET("/mine", h.ListMyPosts)
			adminBlog.POST("/posts", h.CreatePost)
			adminBlog.PUT("/posts/:id", h.UpdatePost)
			adminBlog.DELETE("/posts/:id", h.DeletePost)
			adminBlog.POST("/draft", h.DraftPostContent)
		}

		authorized.GET("/ws", h.ServeWS)
	}
}
