package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/middleware"
)

type authHandler struct {
	auth               domain.AuthUseCase
	signingMsgTemplate string
}

func New(e *echo.Echo, auth domain.AuthUseCase, template string) {
	handler := &authHandler{
		auth:               auth,
		signingMsgTemplate: template,
	}
	g := e.Group("/auth")
	g.POST("/nonce/:address", handler.generateNonce, middleware.IsValidAddress("address"))
	g.POST("/sign", handler.sign)
	g.GET("/signingMsgTemplate", handler.getSigningMsgTemplate)
}

func (h *authHandler) generateNonce(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := domain.Address(c.Param("address"))

	if nonce, err := h.auth.GenerateNonce(ctx, address); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, nonce)
	}
}

func (h *authHandler) sign(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Address   domain.Address `json:"address"`
		Signature string         `json:"signature"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("bind failed")
		return c.JSON(http.StatusUnprocessableEntity, err)
	}

	if tkn, err := h.auth.SignToken(ctx, p.Address, p.Signature); err == domain.ErrInvalidNonce || err == domain.ErrInvalidSignature {
		return delivery.MakeJsonResp(c, http.StatusUnauthorized, err)
	} else if err != nil {
		ctx.WithField("err", err).Error("auth.SignToken failed")
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, tkn)
	}
}

func (h *authHandler) getSigningMsgTemplate(c echo.Context) error {
	res := struct {
		Msg string `json:"template"`
	}{
		Msg: h.signingMsgTemplate,
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
