package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/missionops/internal/service"
)

type RouterDeps struct {
	Auth           service.Authenticator
	CookieName     string
	AllowedOrigins []string

	Users      *UserController
	Missions   *MissionController
	Attendance *AttendanceController
	// Realtime serves the websocket endpoint; it authenticates on its own so
	// it can answer "unauthorized" over the socket.
	Realtime http.Handler
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowOrigins = deps.AllowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.ExposeHeaders = []string{"Set-Cookie"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Realtime != nil {
		router.GET("/ws", gin.WrapH(deps.Realtime))
	}

	api := router.Group("/api")
	authed := RequireAuth(deps.Auth, deps.CookieName)

	if deps.Users != nil {
		users := api.Group("/users")
		users.POST("", OptionalAuth(deps.Auth, deps.CookieName), deps.Users.CreateUser)
		users.GET("/me", authed, deps.Users.Me)
		users.PATCH("/me", authed, deps.Users.UpdateMe)
		users.GET("/:userID", authed, deps.Users.GetUser)
	}

	if deps.Missions != nil {
		missions := api.Group("/missions", authed)
		missions.POST("", deps.Missions.CreateMission)
		missions.GET("/:missionID/messages", deps.Missions.Messages)
	}

	if deps.Attendance != nil {
		api.GET("/attendance", authed, deps.Attendance.ListDay)
	}

	return router
}
