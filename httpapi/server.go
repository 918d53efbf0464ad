// Package httpapi exposes the clipauth engine over HTTP using gin. Routes
// live under /api/v1/users and responses use the statusCode/data/message/
// success envelope.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	clipauth "github.com/clipverse/clipauth"
	"github.com/clipverse/clipauth/upload"
)

// Config holds HTTP-layer settings: CORS origins and cookie behavior.
type Config struct {
	CORSOrigins   []string
	SecureCookies bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// Server wires the engine and the media uploader into gin handlers.
type Server struct {
	engine  *clipauth.Engine
	uploads upload.Uploader
	config  Config
}

// NewServer creates a [Server]. uploads may be nil when media endpoints are
// not needed.
func NewServer(engine *clipauth.Engine, uploads upload.Uploader, cfg Config) *Server {
	if cfg.AccessMaxAge <= 0 {
		cfg.AccessMaxAge = 15 * time.Minute
	}
	if cfg.RefreshMaxAge <= 0 {
		cfg.RefreshMaxAge = 10 * 24 * time.Hour
	}
	return &Server{
		engine:  engine,
		uploads: uploads,
		config:  cfg,
	}
}

// Router builds the gin engine with all user routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestContext())

	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	users := r.Group("/api/v1/users")
	{
		users.POST("/register", s.register)
		users.POST("/login", s.login)
		users.POST("/refresh-token", s.refreshToken)

		users.POST("/logout", s.RequireAuth(), s.logout)
		users.POST("/change-password", s.RequireAuth(), s.changePassword)
		users.GET("/current-user", s.RequireAuth(), s.getCurrentUser)
		users.PATCH("/update-account", s.RequireAuth(), s.updateAccount)
		users.PATCH("/avatar", s.RequireAuth(), s.updateAvatar)
		users.PATCH("/cover-image", s.RequireAuth(), s.updateCoverImage)
	}

	return r
}

func (s *Server) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "accessToken",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(s.config.AccessMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteNoneMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "refreshToken",
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(s.config.RefreshMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteNoneMode,
	})
}

func (s *Server) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.config.SecureCookies,
			SameSite: http.SameSiteNoneMode,
		})
	}
}
