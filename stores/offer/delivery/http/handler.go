package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/offer"
	"github.com/modx-xyz/exchange/middleware"
	authMiddleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
)

type handler struct {
	offer offer.UseCase
}

func New(e *echo.Echo, offerUC offer.UseCase, auth *authMiddleware.AuthMiddleware) {
	h := &handler{offerUC}

	g := e.Group("/offers")
	g.GET("", h.getOffers)
	g.GET("/:chainId/:contract/:tokenId/:offerId", h.getOffer, middleware.IsValidAddress("contract"))
	g.POST("/:chainId/:contract/:tokenId", h.createOffer, middleware.IsValidAddress("contract"), auth.Auth())
	g.PATCH("/:chainId/:contract/:tokenId/:offerId/amount", h.setOfferAmount, middleware.IsValidAddress("contract"), auth.Auth())
	g.DELETE("/:chainId/:contract/:tokenId/:offerId", h.cancelOffer, middleware.IsValidAddress("contract"), auth.Auth())
	g.POST("/:chainId/:contract/:tokenId/:offerId/fill", h.fillOffer, middleware.IsValidAddress("contract"), auth.Auth())
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

func parseOfferId(c echo.Context) (offer.Id, error) {
	nftId, err := parseNftId(c)
	if err != nil {
		return offer.Id{}, err
	}
	offerId, err := strconv.ParseUint(c.Param("offerId"), 10, 64)
	if err != nil {
		return offer.Id{}, domain.ErrBadParamInput
	}
	return offer.Id{
		ChainId:         nftId.ChainId,
		ContractAddress: nftId.ContractAddress,
		TokenId:         nftId.TokenId,
		OfferId:         offerId,
	}, nil
}

func (h *handler) getOffers(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		ChainId  *domain.ChainId `query:"chainId"`
		Contract *domain.Address `query:"contract"`
		TokenId  *domain.TokenId `query:"tokenId"`
		Buyer    *domain.Address `query:"buyer"`
		Currency *domain.Address `query:"currency"`
		Offset   int32           `query:"offset"`
		Limit    int32           `query:"limit"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []offer.FindAllOptionsFunc{}
	if p.ChainId != nil {
		opts = append(opts, offer.WithChainId(*p.ChainId))
	}
	if p.Contract != nil {
		opts = append(opts, offer.WithContractAddress(*p.Contract))
	}
	if p.TokenId != nil {
		opts = append(opts, offer.WithTokenId(*p.TokenId))
	}
	if p.Buyer != nil {
		opts = append(opts, offer.WithBuyer(*p.Buyer))
	}
	if p.Currency != nil {
		opts = append(opts, offer.WithCurrency(*p.Currency))
	}
	if p.Limit > 0 {
		opts = append(opts, offer.WithPagination(p.Offset, p.Limit))
	}

	res, err := h.offer.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) getOffer(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	id, err := parseOfferId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.offer.GetOffer(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) createOffer(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	nftId, err := parseNftId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := offer.CreateOfferParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.offer.CreateOffer(ctx, nftId, p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

func (h *handler) setOfferAmount(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseOfferId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	type payload struct {
		Amount        string `json:"amount"`
		AttachedValue string `json:"attachedValue"`
	}

	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.offer.SetOfferAmount(ctx, id, address, p.Amount, p.AttachedValue)
	if err == domain.ErrNotBuyer {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

func (h *handler) cancelOffer(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseOfferId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.offer.CancelOffer(ctx, id, address); err == domain.ErrNotBuyer {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) fillOffer(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := c.Get("address").(domain.Address)

	id, err := parseOfferId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	p := offer.FillOfferParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	p.Caller = address

	res, err := h.offer.FillOffer(ctx, id, p)
	if err == domain.ErrNotTokenOwnerOrOperator {
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
