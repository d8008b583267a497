package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"researchblog/internal/handlers"
	"researchblog/internal/middleware"
	"researchblog/internal/services"
)

type Deps struct {
	Auth         *services.AuthService
	Posts        *services.PostService
	Log          logrus.FieldLogger
	CORSOrigins  []string
	MaxFileBytes int64
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth)
	postHandler := handlers.NewPostHandler(d.Posts, d.MaxFileBytes)
	requireAuth := middleware.AuthRequired(d.Auth)

	r.GET("/", handlers.Health)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.GET("/verify/:token", authHandler.VerifyEmail)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password/:token", authHandler.ResetPassword)
	}

	posts := r.Group("/api/posts")
	{
		posts.GET("", postHandler.List)
		posts.GET("/my-posts", requireAuth, postHandler.ListMine)
		posts.GET("/:id", postHandler.Get)
		posts.POST("", requireAuth, postHandler.Create)
		posts.PUT("/:id", requireAuth, postHandler.Update)
		posts.DELETE("/:id", requireAuth, postHandler.Delete)
	}
}

// corsConfig allows every origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
