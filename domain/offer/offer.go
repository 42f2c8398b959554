package offer

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
)

// Offer is a buyer's standing bid on one NFT. The full amount is escrowed
// by the module when the offer is created and moves only by exact deltas
// on update, refund on cancel, or payout on fill.
type Offer struct {
	ChainId         domain.ChainId    `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address    `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId    `json:"tokenId" bson:"tokenId"`
	OfferId         uint64            `json:"offerId" bson:"offerId"`
	Buyer           domain.Address    `json:"buyer" bson:"buyer"`
	Amount          string            `json:"amount" bson:"amount"`
	Features        exchange.Features `json:"features" bson:"features"`
	CreatedAt       time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt" bson:"updatedAt"`
}

func (o *Offer) ToId() Id {
	return Id{
		ChainId:         o.ChainId,
		ContractAddress: o.ContractAddress,
		TokenId:         o.TokenId,
		OfferId:         o.OfferId,
	}
}

func (o *Offer) NftId() exchange.NftId {
	return exchange.NftId{
		ChainId:         o.ChainId,
		ContractAddress: o.ContractAddress,
		TokenId:         o.TokenId,
	}
}

type Id struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
	OfferId         uint64         `json:"offerId" bson:"offerId"`
}

type FindAllOptions struct {
	ChainId         *domain.ChainId `bson:"chainId"`
	ContractAddress *domain.Address `bson:"contractAddress"`
	TokenId         *domain.TokenId `bson:"tokenId"`
	Buyer           *domain.Address `bson:"buyer"`
	Currency        *domain.Address `bson:"features.currency"`
	Offset          *int32          `bson:"-"`
	Limit           *int32          `bson:"-"`
	Sort            *string         `bson:"-"`
}

type FindAllOptionsFunc func(*FindAllOptions) error

func GetFindAllOptions(opts ...FindAllOptionsFunc) (FindAllOptions, error) {
	res := FindAllOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithChainId(chainId domain.ChainId) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.ChainId = &chainId
		return nil
	}
}

func WithContractAddress(address domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.ContractAddress = address.ToLowerPtr()
		return nil
	}
}

func WithTokenId(tokenId domain.TokenId) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.TokenId = &tokenId
		return nil
	}
}

func WithBuyer(buyer domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Buyer = buyer.ToLowerPtr()
		return nil
	}
}

func WithCurrency(currency domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Currency = currency.ToLowerPtr()
		return nil
	}
}

func WithPagination(offset int32, limit int32) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Offset = &offset
		options.Limit = &limit
		return nil
	}
}

func WithSort(sort string) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Sort = &sort
		return nil
	}
}

type Repo interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Offer, error)
	FindOne(c ctx.Ctx, id Id) (*Offer, error)
	Upsert(c ctx.Ctx, offer *Offer) error
	Remove(c ctx.Ctx, id Id) error
	// NextOfferId draws the next id from the per-NFT sequence.
	NextOfferId(c ctx.Ctx, nftId exchange.NftId) (uint64, error)
}

type CreateOfferParams struct {
	Caller        domain.Address `json:"-"`
	Amount        string         `json:"amount" validate:"required"`
	Currency      domain.Address `json:"currency"`
	FindersFeeBps domain.Bps     `json:"findersFeeBps"`
	Expiry        *time.Time     `json:"expiry"`
	AttachedValue string         `json:"attachedValue"`
}

type FillOfferParams struct {
	Caller domain.Address `json:"-"`
	// Amount and Currency are a commit-and-check against the record.
	Amount   string         `json:"amount" validate:"required"`
	Currency domain.Address `json:"currency"`
	Finder   domain.Address `json:"finder"`
}

type UseCase interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Offer, error)
	GetOffer(c ctx.Ctx, id Id) (*Offer, error)
	CreateOffer(c ctx.Ctx, nftId exchange.NftId, params CreateOfferParams) (*Offer, error)
	SetOfferAmount(c ctx.Ctx, id Id, caller domain.Address, amount string, attachedValue string) (*Offer, error)
	CancelOffer(c ctx.Ctx, id Id, caller domain.Address) error
	FillOffer(c ctx.Ctx, id Id, params FillOfferParams) (*Offer, error)
}

type CreatedEvent struct {
	Offer Offer `json:"offer"`
}

type AmountUpdatedEvent struct {
	Offer Offer `json:"offer"`
}

type CanceledEvent struct {
	Offer Offer `json:"offer"`
}

type FilledEvent struct {
	Offer  Offer          `json:"offer"`
	Taker  domain.Address `json:"taker"`
	Finder domain.Address `json:"finder"`
}
