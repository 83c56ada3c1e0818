package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/photoshare/backend/internal/handlers"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	"github.com/photoshare/backend/internal/models"
)

type Deps struct {
	Authenticator  *authmw.Authenticator
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	AdminHandler   *handlers.AdminHandler
	PhotoHandler   *handlers.PhotoHandler
	CommentHandler *handlers.CommentHandler
	RatingHandler  *handlers.RatingHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")
	requireUser := d.Authenticator.RequireUser
	moderation := d.Authenticator.RequireRoles(models.RoleModerator, models.RoleAdmin)

	auth := v1.Group("/auth")
	auth.POST("/signup", d.AuthHandler.Signup)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout, requireUser)

	users := v1.Group("/users")
	users.GET("/me", d.UserHandler.Me, requireUser)
	users.PUT("/me", d.UserHandler.UpdateMe, requireUser)
	users.GET("/:username", d.UserHandler.PublicProfile)

	admin := v1.Group("/admin", requireUser, d.Authenticator.RequireRoles(models.RoleAdmin))
	admin.PUT("/users/:identifier/activate", d.AdminHandler.ActivateUser)
	admin.PUT("/users/:identifier/deactivate", d.AdminHandler.DeactivateUser)

	photos := v1.Group("/photos")
	photos.POST("", d.PhotoHandler.Upload, requireUser)
	photos.GET("", d.PhotoHandler.List)
	photos.GET("/search", d.PhotoHandler.Search)
	photos.GET("/:id", d.PhotoHandler.Get)
	photos.PUT("/:id", d.PhotoHandler.Update, requireUser)
	photos.DELETE("/:id", d.PhotoHandler.Delete, requireUser)
	photos.POST("/:id/transform", d.PhotoHandler.Transform, requireUser)
	photos.GET("/:id/transformations", d.PhotoHandler.Transformations)
	photos.GET("/:id/qr", d.PhotoHandler.QRCode)

	comments := v1.Group("/comments")
	comments.POST("/:photo_id", d.CommentHandler.Create, requireUser)
	comments.PUT("/:id", d.CommentHandler.Update, requireUser)
	comments.DELETE("/:id", d.CommentHandler.Delete, requireUser, moderation)

	ratings := v1.Group("/ratings")
	ratings.POST("/:photo_id", d.RatingHandler.Create, requireUser)
	ratings.DELETE("/:id", d.RatingHandler.Delete, requireUser, moderation)

	v1.GET("/search", d.SearchHandler.Search)
}
