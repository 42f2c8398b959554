package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/registry"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	registry registry.UseCase
}

func New(e *echo.Echo, registryUC registry.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{registryUC}

	g := e.Group("/registry")
	g.GET("/feeSettings", h.getFeeSettings)
	g.PUT("/feeSettings", h.setFeeSetting, auth.Auth(), auth.IsAdmin())
	g.GET("/approvals/:module/:user", h.getModuleApproval, middleware.IsValidAddress("module"), middleware.IsValidAddress("user"))
	g.PUT("/approvals/:module", h.setModuleApproval, middleware.IsValidAddress("module"), auth.Auth())
}

func (h *handler) getFeeSettings(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	res, err := h.registry.GetFeeSettings(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) setFeeSetting(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := registry.FeeSetting{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.registry.SetFeeSetting(ctx, &p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, p)
}

func (h *handler) getModuleApproval(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	user := domain.Address(c.Param("user"))
	module := domain.Address(c.Param("module"))

	approved, err := h.registry.IsModuleApproved(ctx, user, module)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	res := struct {
		Approved bool `json:"approved"`
	}{approved}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) setModuleApproval(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)
	module := domain.Address(c.Param("module"))

	type payload struct {
		Approved bool `json:"approved"`
	}

	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.registry.SetModuleApproval(ctx, address, module, p.Approved); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
