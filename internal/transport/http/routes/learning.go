package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/arklim/learnstore/internal/transport/http/handlers"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
)

// registerLearning mounts the course platform API. Its clients send the session token
// in the x-auth-token header as well as in Authorization.
func registerLearning(api *gin.RouterGroup, deps Dependencies) {
	svc := deps.Services
	auth := middleware.NewAuthenticator(svc.Tokens, middleware.AuthOptions{AcceptTokenHeader: true})
	limits := buildLimits(deps)

	teacher := handlers.NewTeacherHandler(svc.Profiles, svc.Students, deps.Logger)

	authGroup := api.Group("/auth")
	handlers.NewLearningAuthHandler(svc.OTP, svc.Credentials, svc.Tokens, deps.Logger).RegisterRoutes(authGroup, limits)
	// student directory aliases used by the teacher dashboard
	teacher.RegisterStudentRoutes(authGroup, auth)

	teacher.RegisterRoutes(api.Group("/teacher"), auth)
	handlers.NewStudentHandler(svc.OTP, svc.Students, deps.Logger).RegisterRoutes(api.Group("/student"), auth)
}
