package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/arklim/learnstore/internal/transport/http/handlers"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
)

// registerStore mounts the storefront API. Tokens are accepted as Bearer credentials only.
func registerStore(api *gin.RouterGroup, deps Dependencies) {
	svc := deps.Services
	auth := middleware.NewAuthenticator(svc.Tokens, middleware.AuthOptions{})

	handlers.NewStoreAuthHandler(svc.Credentials, svc.Tokens, svc.Profiles, deps.Logger).
		RegisterRoutes(api.Group("/auth"), auth, buildLimits(deps))
	handlers.NewOrderHandler(svc.Orders, deps.Logger).RegisterRoutes(api.Group("/orders"), auth)
	handlers.NewAdminHandler(svc.Admin, svc.Profiles, deps.Logger).RegisterRoutes(api.Group("/admin"), auth)
}
