package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/royalty"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	royalty royalty.UseCase
}

func New(e *echo.Echo, royaltyUC royalty.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{royaltyUC}

	g := e.Group("/royalties")
	g.GET("/:chainId/:contract", h.getSchedule, middleware.IsValidAddress("contract"))
	g.GET("/:chainId/:contract/:tokenId", h.getSchedule, middleware.IsValidAddress("contract"))
	g.PUT("/:chainId/:contract", h.setSchedule, middleware.IsValidAddress("contract"), auth.Auth(), auth.IsAdmin())
	g.PUT("/:chainId/:contract/:tokenId", h.setSchedule, middleware.IsValidAddress("contract"), auth.Auth(), auth.IsAdmin())
	g.DELETE("/:chainId/:contract", h.removeSchedule, middleware.IsValidAddress("contract"), auth.Auth(), auth.IsAdmin())
	g.DELETE("/:chainId/:contract/:tokenId", h.removeSchedule, middleware.IsValidAddress("contract"), auth.Auth(), auth.IsAdmin())
}

func parseScheduleId(c echo.Context) (royalty.ScheduleId, error) {
	chainId, err := strconv.ParseInt(c.Param("chainId"), 10, 32)
	if err != nil {
		return royalty.ScheduleId{}, domain.ErrInvalidChainId
	}
	return royalty.ScheduleId{
		ChainId:         domain.ChainId(chainId),
		ContractAddress: domain.Address(c.Param("contract")),
		TokenId:         domain.TokenId(c.Param("tokenId")),
	}, nil
}

func (h *handler) getSchedule(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseScheduleId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.royalty.GetSchedule(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) setSchedule(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseScheduleId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type payload struct {
		Shares []royalty.Share `json:"shares"`
	}

	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	schedule := &royalty.Schedule{
		ChainId:         id.ChainId,
		ContractAddress: id.ContractAddress,
		TokenId:         id.TokenId,
		Shares:          p.Shares,
	}
	if err := h.royalty.SetSchedule(ctx, schedule); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, schedule)
}

func (h *handler) removeSchedule(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseScheduleId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.royalty.RemoveSchedule(ctx, id); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
