package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/put"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	put put.UseCase
}

func New(e *echo.Echo, putUC put.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{putUC}

	g := e.Group("/puts")
	g.GET("", h.getPuts)
	g.GET("/:chainId/:contract/:tokenId/:putId", h.getPut, middleware.IsValidAddress("contract"))
	g.POST("/:chainId/:contract/:tokenId", h.createPut, middleware.IsValidAddress("contract"), auth.Auth())
	g.DELETE("/:chainId/:contract/:tokenId/:putId", h.cancelPut, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/:putId/buy", h.buyPut, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/:putId/exercise", h.exercisePut, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/:putId/reclaim", h.reclaimPut, middleware.IsValidAddress("contract"), auth.Auth())
}

func parseNftId(c echo.Context) (exchange.NftId, error) {
	chainId, err := strconv.ParseInt(c.Param("chainId"), 10, 32)
	if err != nil {
		return exchange.NftId{}, domain.ErrInvalidChainId
	}
	return exchange.NftId{
		ChainId:         domain.ChainId(chainId),
		ContractAddress: domain.Address(c.Param("contract")),
		TokenId:         domain.TokenId(c.Param("tokenId")),
	}, nil
}

func parsePutId(c echo.Context) (put.Id, error) {
	nftId, err := parseNftId(c)
	if err != nil {
		return put.Id{}, err
	}
	putId, err := strconv.ParseUint(c.Param("putId"), 10, 64)
	if err != nil {
		return put.Id{}, domain.ErrBadParamInput
	}
	return put.Id{
		ChainId:         nftId.ChainId,
		ContractAddress: nftId.ContractAddress,
		TokenId:         nftId.TokenId,
		PutId:           putId,
	}, nil
}

func (h *handler) getPuts(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		ChainId  *domain.ChainId `query:"chainId"`
		Contract *domain.Address `query:"contract"`
		TokenId  *domain.TokenId `query:"tokenId"`
		Seller   *domain.Address `query:"seller"`
		Buyer    *domain.Address `query:"buyer"`
		Offset   int32           `query:"offset"`
		Limit    int32           `query:"limit"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []put.FindAllOptionsFunc{}
	if p.ChainId != nil {
		opts = append(opts, put.WithChainId(*p.ChainId))
	}
	if p.Contract != nil {
		opts = append(opts, put.WithContractAddress(*p.Contract))
	}
	if p.TokenId != nil {
		opts = append(opts, put.WithTokenId(*p.TokenId))
	}
	if p.Seller != nil {
		opts = append(opts, put.WithSeller(*p.Seller))
	}
	if p.Buyer != nil {
		opts = append(opts, put.WithBuyer(*p.Buyer))
	}
	if p.Limit > 0 {
		opts = append(opts, put.WithPagination(p.Offset, p.Limit))
	}

	res, err := h.put.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) getPut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parsePutId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.put.GetPut(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) createPut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	nftId, err := parseNftId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := put.CreatePutParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.put.CreatePut(ctx, nftId, p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

func (h *handler) cancelPut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parsePutId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.put.CancelPut(ctx, id, address); err == domain.ErrNotSeller {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) buyPut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parsePutId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := put.BuyPutParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.put.BuyPut(ctx, id, p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) exercisePut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parsePutId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.put.ExercisePut(ctx, id, address)
	if err == domain.ErrNotBuyer {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) reclaimPut(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parsePutId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.put.ReclaimPut(ctx, id, address); err == domain.ErrNotSeller {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
