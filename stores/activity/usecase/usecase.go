package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/activity"
	"github.com/modx-xyz/exchange/domain/ask"
	"github.com/modx-xyz/exchange/domain/auction"
	"github.com/modx-xyz/exchange/domain/exchange"
	"github.com/modx-xyz/exchange/domain/offer"
	"github.com/modx-xyz/exchange/domain/put"
)

// Impl is exported so callers can register it on the dispatcher as an
// exchange.Subscriber and serve queries from the same instance.
type Impl struct {
	activities activity.Repo
}

// New returns a use case that doubles as the event subscriber feeding the
// activity history.
func New(activities activity.Repo) *Impl {
	return &Impl{activities: activities}
}

var _ activity.UseCase = (*Impl)(nil)
var _ exchange.Subscriber = (*Impl)(nil)

func (im *Impl) FindAll(c ctx.Ctx, opts ...activity.FindAllOptionsFunc) ([]*activity.Activity, error) {
	return im.activities.FindAll(c, opts...)
}

func (im *Impl) Count(c ctx.Ctx, opts ...activity.FindAllOptionsFunc) (int, error) {
	return im.activities.Count(c, opts...)
}

// HandleEvent turns module events into history rows. Failures only log,
// the history is best effort and never blocks settlement.
func (im *Impl) HandleEvent(c ctx.Ctx, event interface{}) {
	var row *activity.Activity

	switch ev := event.(type) {
	case *ask.CreatedEvent:
		row = askRow(&ev.Ask, activity.TypeList)
	case *ask.PriceUpdatedEvent:
		row = askRow(&ev.Ask, activity.TypeUpdateListing)
	case *ask.CanceledEvent:
		row = askRow(&ev.Ask, activity.TypeCancelListing)
	case *ask.FilledEvent:
		row = askRow(&ev.Ask, activity.TypeBuy)
		row.Account = ev.Buyer
		row.To = ev.Ask.Seller

	case *offer.CreatedEvent:
		row = offerRow(&ev.Offer, activity.TypeCreateOffer)
	case *offer.AmountUpdatedEvent:
		row = offerRow(&ev.Offer, activity.TypeUpdateOffer)
	case *offer.CanceledEvent:
		row = offerRow(&ev.Offer, activity.TypeCancelOffer)
	case *offer.FilledEvent:
		row = offerRow(&ev.Offer, activity.TypeOfferTaken)
		row.Account = ev.Taker
		row.To = ev.Offer.Buyer

	case *auction.CreatedEvent:
		row = auctionRow(&ev.Auction, activity.TypeCreateAuction)
	case *auction.ReservePriceUpdatedEvent:
		row = auctionRow(&ev.Auction, activity.TypeUpdateReservePrice)
	case *auction.CanceledEvent:
		row = auctionRow(&ev.Auction, activity.TypeCancelAuction)
	case *auction.BidEvent:
		row = auctionRow(&ev.Auction, activity.TypePlaceBid)
		row.Account = ev.Ongoing.HighestBidder
		row.Price = ev.Ongoing.HighestBid
	case *auction.EndedEvent:
		row = auctionRow(&ev.Auction, activity.TypeAuctionSettled)
		row.Account = ev.Ongoing.HighestBidder
		row.To = ev.Auction.Seller
		row.Price = ev.Ongoing.HighestBid

	case *put.CreatedEvent:
		row = putRow(&ev.Put, activity.TypeCreatePut)
	case *put.CanceledEvent:
		row = putRow(&ev.Put, activity.TypeCancelPut)
	case *put.PurchasedEvent:
		row = putRow(&ev.Put, activity.TypeBuyPut)
		row.Account = ev.Put.Buyer
		row.To = ev.Put.Seller
		row.Price = ev.Put.Premium
	case *put.ExercisedEvent:
		row = putRow(&ev.Put, activity.TypeExercisePut)
		row.Account = ev.Put.Buyer
		row.To = ev.Put.Seller
	case *put.ReclaimedEvent:
		row = putRow(&ev.Put, activity.TypeReclaimPut)

	case *exchange.ExecutedEvent:
		row = &activity.Activity{
			ChainId:         ev.ChainId,
			ContractAddress: ev.A.TokenContract,
			TokenId:         ev.A.TokenId,
			Type:            activity.TypeSale,
			Account:         ev.UserA,
			To:              ev.UserB,
			Price:           ev.B.Amount,
			PaymentToken:    ev.B.TokenContract,
			Time:            ev.Time,
		}
	}

	if row == nil {
		return
	}
	row.PriceInNative = displayPrice(row.Price)
	if err := im.activities.Insert(c, row); err != nil {
		c.WithField("err", err).Error("activities.Insert failed")
	}
}

// displayPrice converts a wei amount into whole native units for display.
func displayPrice(wei string) float64 {
	if wei == "" {
		return 0
	}
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return 0
	}
	return d.Shift(-18).InexactFloat64()
}

func askRow(a *ask.Ask, typ activity.Type) *activity.Activity {
	return &activity.Activity{
		ChainId:         a.ChainId,
		ContractAddress: a.ContractAddress,
		TokenId:         a.TokenId,
		Type:            typ,
		Account:         a.Seller,
		Price:           a.Price,
		PaymentToken:    a.Features.Currency(),
		Time:            a.UpdatedAt,
	}
}

func offerRow(o *offer.Offer, typ activity.Type) *activity.Activity {
	return &activity.Activity{
		ChainId:         o.ChainId,
		ContractAddress: o.ContractAddress,
		TokenId:         o.TokenId,
		Type:            typ,
		Account:         o.Buyer,
		Price:           o.Amount,
		PaymentToken:    o.Features.Currency(),
		Time:            o.UpdatedAt,
	}
}

func auctionRow(a *auction.Auction, typ activity.Type) *activity.Activity {
	return &activity.Activity{
		ChainId:         a.ChainId,
		ContractAddress: a.ContractAddress,
		TokenId:         a.TokenId,
		Type:            typ,
		Account:         a.Seller,
		Price:           a.ReservePrice,
		PaymentToken:    a.Features.Currency(),
		Time:            a.CreatedAt,
	}
}

func putRow(p *put.Put, typ activity.Type) *activity.Activity {
	return &activity.Activity{
		ChainId:         p.ChainId,
		ContractAddress: p.ContractAddress,
		TokenId:         p.TokenId,
		Type:            typ,
		Account:         p.Seller,
		Price:           p.Strike,
		PaymentToken:    domain.NativeCurrency,
		Time:            p.CreatedAt,
	}
}
