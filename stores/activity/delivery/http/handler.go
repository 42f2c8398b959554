package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/delivery"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/activity"
)

type handler struct {
	activity activity.UseCase
}

func New(e *echo.Echo, activityUC activity.UseCase) {
	h := &handler{activityUC}

	g := e.Group("/activities")
	g.GET("", h.getActivities)
}

func (h *handler) getActivities(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		ChainId  *domain.ChainId `query:"chainId"`
		Contract *domain.Address `query:"contract"`
		TokenId  *domain.TokenId `query:"tokenId"`
		Account  *domain.Address `query:"account"`
		Types    []activity.Type `query:"type"`
		TimeGTE  *time.Time      `query:"timeGTE"`
		Offset   int32           `query:"offset"`
		Limit    int32           `query:"limit"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []activity.FindAllOptionsFunc{}
	if p.ChainId != nil {
		opts = append(opts, activity.WithChainId(*p.ChainId))
	}
	if p.Contract != nil {
		opts = append(opts, activity.WithContractAddress(*p.Contract))
	}
	if p.TokenId != nil {
		opts = append(opts, activity.WithTokenId(*p.TokenId))
	}
	if p.Account != nil {
		opts = append(opts, activity.WithAccount(*p.Account))
	}
	if len(p.Types) > 0 {
		opts = append(opts, activity.WithTypes(p.Types...))
	}
	if p.TimeGTE != nil {
		opts = append(opts, activity.WithTimeGTE(*p.TimeGTE))
	}
	if p.Limit > 0 {
		opts = append(opts, activity.WithPagination(p.Offset, p.Limit))
	}

	items, err := h.activity.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	count, err := h.activity.Count(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	res := struct {
		Items []*activity.Activity `json:"items"`
		Count int                  `json:"count"`
	}{items, count}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
