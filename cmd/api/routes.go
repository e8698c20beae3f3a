package main

import (
	"github.com/gin-gonic/gin"

	"github.com/mernchat/server/internal/middleware"
)

// newRouter assembles all routes. limiter guards only the credential
// endpoints; everything else, the websocket included, is unthrottled.
func newRouter(s *server, limiter *middleware.LimiterStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(s.origins))

	limited := middleware.RateLimit(limiter)
	r.POST("/register", limited, s.handleRegister)
	r.POST("/login", limited, s.handleLogin)
	r.POST("/logout", s.handleLogout)

	r.GET("/profile", s.handleProfile)
	r.GET("/people", s.handlePeople)
	r.GET("/messages/:userId", s.handleMessages)

	r.GET("/joke", s.handleJoke)
	r.GET("/quote", s.handleQuote)
	r.GET("/tarot", s.handleTarot)

	// stored attachments, served under the names the relay generated
	r.Static("/files", s.files.Dir())

	r.GET("/ws", s.handleWS)

	return r
}
