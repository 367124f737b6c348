package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/learnstore/internal/core/domain"
)

func TestStoreRegistrationWithOTP(t *testing.T) {
	h, svc := newHarness(t)
	h.store(svc)

	rr := h.do(http.MethodPost, "/api/auth/send-register-otp", "", RegisterOTPStartRequest{Name: "Kiran", Email: "kiran@example.com"})
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodPost, "/api/auth/register-otp", "", RegisterOTPRequest{Name: "Kiran", Email: "kiran@example.com", Password: "bookshelf", OTP: "111111"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = h.do(http.MethodPost, "/api/auth/register-otp", "", RegisterOTPRequest{Name: "Kiran", Email: "kiran@example.com", Password: "bookshelf", OTP: "482913"})
	expectStatus(t, rr, http.StatusCreated)
	session := decode[SessionResponse](t, rr)
	if session.Token == "" || session.User.Name != "Kiran" || session.User.Role != "user" {
		t.Fatalf("unexpected session %+v", session)
	}

	rr = h.do(http.MethodPost, "/api/auth/send-register-otp", "", RegisterOTPStartRequest{Name: "Kiran", Email: "kiran@example.com"})
	expectStatus(t, rr, http.StatusConflict)

	rr = h.do(http.MethodPost, "/api/auth/login-password", "", PasswordLoginRequest{Email: "kiran@example.com", Password: "bookshelf"})
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodGet, "/api/auth/me", session.Token, nil)
	expectStatus(t, rr, http.StatusOK)
	if me := decode[AccountView](t, rr); me.Email != "kiran@example.com" {
		t.Fatalf("unexpected account %+v", me)
	}

	rr = h.do(http.MethodPut, "/api/auth/update", session.Token, ProfileRequest{Name: "Kiran R", Password: "new-bookshelf"})
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodPost, "/api/auth/login", "", PasswordLoginRequest{Email: "kiran@example.com", Password: "bookshelf"})
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = h.do(http.MethodPost, "/api/auth/login", "", PasswordLoginRequest{Email: "kiran@example.com", Password: "new-bookshelf"})
	expectStatus(t, rr, http.StatusOK)
}

func TestPlaceOrderAndHistory(t *testing.T) {
	h, svc := newHarness(t)
	h.store(svc)
	customer := h.repo.put(domain.Identity{Name: "Kiran", Email: "kiran@example.com", Role: domain.RoleUser})
	token := h.tokenFor(customer)

	rr := h.do(http.MethodGet, "/api/orders/myorders", token, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = h.do(http.MethodPost, "/api/orders", "", PlaceOrderRequest{Products: []OrderLineRequest{{Product: "p-lamp", Quantity: 1}}})
	expectStatus(t, rr, http.StatusUnauthorized)

	rr = h.do(http.MethodPost, "/api/orders", token, PlaceOrderRequest{
		Products:        []OrderLineRequest{{Product: "p-lamp", Quantity: 2}, {Product: "p-desk", Quantity: 1}},
		ShippingAddress: "12 MG Road, Pune",
	})
	expectStatus(t, rr, http.StatusCreated)
	order := decode[OrderView](t, rr)
	if order.TotalAmount != 7999 || order.Status != "Pending" || order.User != customer.ID {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.Products[0].PriceAtOrder != 499.5 {
		t.Fatalf("expected captured price, got %+v", order.Products[0])
	}

	rr = h.do(http.MethodPost, "/api/orders", token, PlaceOrderRequest{Products: []OrderLineRequest{{Product: "p-ghost", Quantity: 1}}})
	expectStatus(t, rr, http.StatusNotFound)

	rr = h.do(http.MethodGet, "/api/orders/myorders", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if history := decode[[]OrderView](t, rr); len(history) != 1 {
		t.Fatalf("expected one order, got %d", len(history))
	}
}

func TestAdminPanel(t *testing.T) {
	h, svc := newHarness(t)
	h.store(svc)
	admin := h.repo.put(domain.Identity{Name: "Meera", Email: "meera@example.com", PasswordHash: "hashed:admin-secret", Role: domain.RoleAdmin})
	customer := h.repo.put(domain.Identity{Name: "Kiran", Email: "kiran@example.com", Role: domain.RoleUser})
	adminToken := h.tokenFor(admin)

	rr := h.do(http.MethodGet, "/api/admin/dashboard", h.tokenFor(customer), nil)
	expectStatus(t, rr, http.StatusForbidden)

	orderResp := h.do(http.MethodPost, "/api/orders", h.tokenFor(customer), PlaceOrderRequest{Products: []OrderLineRequest{{Product: "p-lamp", Quantity: 1}}})
	expectStatus(t, orderResp, http.StatusCreated)
	order := decode[OrderView](t, orderResp)

	rr = h.do(http.MethodGet, "/api/admin/dashboard", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if counts := decode[DashboardResponse](t, rr); counts.TotalProducts != 2 || counts.TotalOrders != 1 {
		t.Fatalf("unexpected dashboard %+v", counts)
	}

	rr = h.do(http.MethodPut, "/api/admin/orders/"+order.ID, adminToken, OrderStatusRequest{Status: "Teleported"})
	expectStatus(t, rr, http.StatusBadRequest)
	rr = h.do(http.MethodPut, "/api/admin/orders/"+order.ID, adminToken, OrderStatusRequest{Status: "Shipped"})
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodGet, "/api/admin/alerts", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	alerts := decode[AlertsResponse](t, rr)
	if len(alerts.LowStock) != 1 || alerts.LowStock[0].ID != "p-lamp" || len(alerts.RecentOrders) != 1 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}

	rr = h.do(http.MethodPut, "/api/admin/users/"+admin.ID+"/role", adminToken, nil)
	expectStatus(t, rr, http.StatusForbidden)

	rr = h.do(http.MethodPut, "/api/admin/users/"+customer.ID+"/role", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if promoted := decode[AccountResponse](t, rr); promoted.User.Role != "admin" {
		t.Fatalf("expected promotion, got %+v", promoted.User)
	}

	rr = h.do(http.MethodPut, "/api/admin/settings", adminToken, SettingsRequest{Name: "Meera R", CurrentPassword: "guess", NewPassword: "admin-secret-2"})
	expectStatus(t, rr, http.StatusBadRequest)
	rr = h.do(http.MethodPut, "/api/admin/settings", adminToken, SettingsRequest{Name: "Meera R", CurrentPassword: "admin-secret", NewPassword: "admin-secret-2"})
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodDelete, "/api/admin/orders/"+order.ID, adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	rr = h.do(http.MethodDelete, "/api/admin/orders/"+order.ID, adminToken, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = h.do(http.MethodDelete, "/api/admin/users/"+admin.ID, adminToken, nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestReadinessReportsFailingCheck(t *testing.T) {
	h, _ := newHarness(t)
	health := NewHealthHandler(
		WithReadinessCheck("mongo", func(ctx context.Context) error { return nil }),
		WithReadinessCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }),
	)
	r := gin.New()
	r.GET("/readyz", health.Readiness)
	r.GET("/healthz", health.Status)
	h.router = r

	rr := h.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rr, http.StatusOK)

	rr = h.do(http.MethodGet, "/readyz", "", nil)
	expectStatus(t, rr, http.StatusServiceUnavailable)
	ready := decode[ReadinessResponse](t, rr)
	if ready.Checks["mongo"] != "ok" || ready.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected readiness %+v", ready)
	}
}
