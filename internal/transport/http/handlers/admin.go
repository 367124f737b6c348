package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// AdminHandler backs the storefront admin panel. Every route requires the admin role.
type AdminHandler struct {
	admin    *usecase.AdminService
	profiles *usecase.ProfileService
	errs     errorResponder
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *usecase.AdminService, profiles *usecase.ProfileService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		profiles: profiles,
		errs:     newErrorResponder(logger),
	}
}

// RegisterRoutes binds the admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Authenticator) {
	admin := func(fn middleware.AuthedHandler) gin.HandlerFunc {
		return auth.Require(fn, domain.RoleAdmin)
	}

	r.GET("/dashboard", admin(h.Dashboard))
	r.GET("/users", admin(h.ListUsers))
	r.DELETE("/users/:id", admin(h.DeleteUser))
	r.PUT("/users/:id/role", admin(h.ToggleRole))
	r.GET("/orders", admin(h.ListOrders))
	r.PUT("/orders/:id", admin(h.UpdateOrderStatus))
	r.DELETE("/orders/:id", admin(h.DeleteOrder))
	r.GET("/alerts", admin(h.Alerts))
	r.GET("/me", admin(h.Me))
	r.PUT("/settings", admin(h.UpdateSettings))
}

// Dashboard godoc
// @Summary Collection counts for the admin dashboard
// @Tags Admin
// @Produce json
// @Success 200 {object} DashboardResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context, _ domain.Principal) {
	counts, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		h.errs.respond(c, "admin dashboard", err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{
		TotalUsers:    counts.Users,
		TotalProducts: counts.Products,
		TotalOrders:   counts.Orders,
	})
}

func (h *AdminHandler) ListUsers(c *gin.Context, _ domain.Principal) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		h.errs.respond(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, newAccountViews(users))
}

func (h *AdminHandler) DeleteUser(c *gin.Context, principal domain.Principal) {
	if err := h.admin.DeleteUser(c.Request.Context(), principal.IdentityID, c.Param("id")); err != nil {
		h.errs.respond(c, "delete user", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted"})
}

// ToggleRole switches an account between user and admin.
func (h *AdminHandler) ToggleRole(c *gin.Context, principal domain.Principal) {
	user, err := h.admin.ToggleRole(c.Request.Context(), principal.IdentityID, c.Param("id"))
	if err != nil {
		h.errs.respond(c, "toggle role", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Message: "User role updated to " + string(user.Role), User: newAccountView(user)})
}

func (h *AdminHandler) ListOrders(c *gin.Context, _ domain.Principal) {
	orders, err := h.admin.ListOrders(c.Request.Context())
	if err != nil {
		h.errs.respond(c, "list orders", err)
		return
	}
	c.JSON(http.StatusOK, newOrderViews(orders))
}

func (h *AdminHandler) UpdateOrderStatus(c *gin.Context, principal domain.Principal) {
	var req OrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	err := h.admin.UpdateOrderStatus(c.Request.Context(), principal.IdentityID, c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.errs.respond(c, "update order status", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "order not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Status updated"})
}

func (h *AdminHandler) DeleteOrder(c *gin.Context, _ domain.Principal) {
	if err := h.admin.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.errs.respond(c, "delete order", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "order not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Order deleted"})
}

func (h *AdminHandler) Alerts(c *gin.Context, _ domain.Principal) {
	alerts, err := h.admin.Alerts(c.Request.Context())
	if err != nil {
		h.errs.respond(c, "admin alerts", err)
		return
	}
	c.JSON(http.StatusOK, newAlertsResponse(alerts))
}

func (h *AdminHandler) Me(c *gin.Context, principal domain.Principal) {
	identity, err := h.profiles.Profile(c.Request.Context(), principal.IdentityID, domain.RoleAdmin)
	if err != nil {
		h.errs.respond(c, "admin me", err)
		return
	}
	c.JSON(http.StatusOK, newAccountView(identity))
}

// UpdateSettings renames the admin and, when newPassword is set, changes the password after
// checking currentPassword.
func (h *AdminHandler) UpdateSettings(c *gin.Context, principal domain.Principal) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid settings payload")
		return
	}

	identity, err := h.profiles.UpdateSettings(c.Request.Context(), principal.IdentityID, req.Name, req.CurrentPassword, req.NewPassword, domain.RoleAdmin)
	if err != nil {
		h.errs.respond(c, "admin settings", err, ErrorCase{Err: usecase.ErrUnauthenticated, Status: http.StatusBadRequest, Message: "current password is incorrect"})
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Message: "Settings updated", User: newAccountView(identity)})
}
