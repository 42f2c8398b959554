package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/auction"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	auction auction.UseCase
}

func New(e *echo.Echo, auctionUC auction.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{auctionUC}

	g := e.Group("/auctions")
	g.GET("", h.getAuctions)
	g.GET("/:chainId/:contract/:tokenId", h.getAuction, middleware.IsValidAddress("contract"))
	g.POST("/:chainId/:contract/:tokenId", h.createAuction, middleware.IsValidAddress("contract"), auth.Auth())
	g.PATCH("/:chainId/:contract/:tokenId/reservePrice", h.setReservePrice, middleware.IsValidAddress("contract"), auth.Auth())
	g.DELETE("/:chainId/:contract/:tokenId", h.cancelAuction, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/bids", h.createBid, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/settle", h.settleAuction, middleware.IsValidAddress("contract"), auth.Auth())
}

func parseAuctionId(c echo.Context) (auction.Id, error) {
	chainId, err := strconv.ParseInt(c.Param("chainId"), 10, 32)
	if err != nil {
		return auction.Id{}, domain.ErrInvalidChainId
	}
	return auction.Id{
		ChainId:         domain.ChainId(chainId),
		ContractAddress: domain.Address(c.Param("contract")),
		TokenId:         domain.TokenId(c.Param("tokenId")),
	}, nil
}

func (h *handler) getAuctions(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		ChainId  *domain.ChainId `query:"chainId"`
		Contract *domain.Address `query:"contract"`
		Seller   *domain.Address `query:"seller"`
		Offset   int32           `query:"offset"`
		Limit    int32           `query:"limit"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []auction.FindAllOptionsFunc{}
	if p.ChainId != nil {
		opts = append(opts, auction.WithChainId(*p.ChainId))
	}
	if p.Contract != nil {
		opts = append(opts, auction.WithContractAddress(*p.Contract))
	}
	if p.Seller != nil {
		opts = append(opts, auction.WithSeller(*p.Seller))
	}
	if p.Limit > 0 {
		opts = append(opts, auction.WithPagination(p.Offset, p.Limit))
	}

	res, err := h.auction.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) getAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	record, ongoing, err := h.auction.GetAuction(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	res := struct {
		Auction *auction.Auction `json:"auction"`
		Ongoing *auction.Ongoing `json:"ongoing,omitempty"`
	}{record, ongoing}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) createAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := auction.CreateAuctionParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.auction.CreateAuction(ctx, id, p)
	if err == domain.ErrNotTokenOwnerOrOperator {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

func (h *handler) setReservePrice(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type payload struct {
		ReservePrice string `json:"reservePrice"`
	}

	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.auction.SetAuctionReservePrice(ctx, id, address, p.ReservePrice)
	if err == domain.ErrNotSeller {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) cancelAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.auction.CancelAuction(ctx, id, address); err == domain.ErrNotSeller {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) createBid(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := auction.CreateBidParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.auction.CreateBid(ctx, id, p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

func (h *handler) settleAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseAuctionId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	record, ongoing, err := h.auction.SettleAuction(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res := struct {
		Auction *auction.Auction `json:"auction"`
		Ongoing *auction.Ongoing `json:"ongoing"`
	}{record, ongoing}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
