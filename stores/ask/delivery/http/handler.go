package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/ask"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	ask ask.UseCase
}

func New(e *echo.Echo, askUC ask.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{askUC}

	g := e.Group("/asks")
	g.GET("", h.getAsks)
	g.GET("/:chainId/:contract/:tokenId", h.getAsk, middleware.IsValidAddress("contract"))
	g.POST("/:chainId/:contract/:tokenId", h.createAsk, middleware.IsValidAddress("contract"), auth.Auth())
	g.PATCH("/:chainId/:contract/:tokenId/price", h.setAskPrice, middleware.IsValidAddress("contract"), auth.Auth())
	g.DELETE("/:chainId/:contract/:tokenId", h.cancelAsk, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/fill", h.fillAsk, middleware.IsValidAddress("contract"), auth.Auth())
}

func parseAskId(c echo.Context) (ask.Id, error) {
	chainId, err := strconv.ParseInt(c.Param("chainId"), 10, 32)
	if err != nil {
		return ask.Id{}, domain.ErrInvalidChainId
	}
	return ask.Id{
		ChainId:         domain.ChainId(chainId),
		ContractAddress: domain.Address(c.Param("contract")),
		TokenId:         domain.TokenId(c.Param("tokenId")),
	}, nil
}

func (h *handler) getAsks(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		ChainId  *domain.ChainId `query:"chainId"`
		Contract *domain.Address `query:"contract"`
		Seller   *domain.Address `query:"seller"`
		Currency *domain.Address `query:"currency"`
		Offset   int32           `query:"offset"`
		Limit    int32           `query:"limit"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []ask.FindAllOptionsFunc{}
	if p.ChainId != nil {
		opts = append(opts, ask.WithChainId(*p.ChainId))
	}
	if p.Contract != nil {
		opts = append(opts, ask.WithContractAddress(*p.Contract))
	}
	if p.Seller != nil {
		opts = append(opts, ask.WithSeller(*p.Seller))
	}
	if p.Currency != nil {
		opts = append(opts, ask.WithCurrency(*p.Currency))
	}
	if p.Limit > 0 {
		opts = append(opts, ask.WithPagination(p.Offset, p.Limit))
	}

	res, err := h.ask.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) getAsk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseAskId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.ask.GetAsk(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) createAsk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAskId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := ask.CreateAskParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.ask.CreateAsk(ctx, id, p)
	if err == domain.ErrNotTokenOwnerOrOperator {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

func (h *handler) setAskPrice(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAskId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type payload struct {
		Price    string         `json:"price"`
		Currency domain.Address `json:"currency"`
	}

	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.ask.SetAskPrice(ctx, id, address, p.Price, p.Currency)
	if err == domain.ErrNotSeller {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) cancelAsk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAskId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.ask.CancelAsk(ctx, id, address); err == domain.ErrNotTokenOwnerOrOperator {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) fillAsk(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAskId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := ask.FillAskParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.ask.FillAsk(ctx, id, p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
