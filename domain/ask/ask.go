package ask

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
)

// Ask is a seller's standing offer to sell one NFT at a fixed price. At
// most one active ask exists per NFT; creating a new one replaces (and
// explicitly cancels) any prior ask.
type Ask struct {
	ChainId         domain.ChainId    `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address    `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId    `json:"tokenId" bson:"tokenId"`
	Seller          domain.Address    `json:"seller" bson:"seller"`
	Price           string            `json:"price" bson:"price"`
	Features        exchange.Features `json:"features" bson:"features"`
	CreatedAt       time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt" bson:"updatedAt"`
}

func (a *Ask) ToId() Id {
	return Id{
		ChainId:         a.ChainId,
		ContractAddress: a.ContractAddress,
		TokenId:         a.TokenId,
	}
}

func (a *Ask) NftId() exchange.NftId {
	return exchange.NftId(a.ToId())
}

type Id struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
}

type FindAllOptions struct {
	ChainId         *domain.ChainId `bson:"chainId"`
	ContractAddress *domain.Address `bson:"contractAddress"`
	Seller          *domain.Address `bson:"seller"`
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

func WithSeller(seller domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Seller = seller.ToLowerPtr()
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
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Ask, error)
	FindOne(c ctx.Ctx, id Id) (*Ask, error)
	Upsert(c ctx.Ctx, ask *Ask) error
	Remove(c ctx.Ctx, id Id) error
}

type CreateAskParams struct {
	Caller         domain.Address `json:"-"`
	Price          string         `json:"price" validate:"required"`
	Currency       domain.Address `json:"currency"`
	Expiry         *time.Time     `json:"expiry"`
	FundsRecipient domain.Address `json:"fundsRecipient"`
	FindersFeeBps  domain.Bps     `json:"findersFeeBps"`
	ListingFeeBps  domain.Bps     `json:"listingFeeBps"`
	ListingFeeTo   domain.Address `json:"listingFeeRecipient"`
	Buyer          domain.Address `json:"buyer"`
}

type FillAskParams struct {
	Caller domain.Address `json:"-"`
	// Price and Currency are a commit-and-check against the record; the
	// fill reverts if the ask changed after the buyer submitted.
	Price         string         `json:"price" validate:"required"`
	Currency      domain.Address `json:"currency"`
	Finder        domain.Address `json:"finder"`
	AttachedValue string         `json:"attachedValue"`
}

type UseCase interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Ask, error)
	GetAsk(c ctx.Ctx, id Id) (*Ask, error)
	CreateAsk(c ctx.Ctx, id Id, params CreateAskParams) (*Ask, error)
	SetAskPrice(c ctx.Ctx, id Id, caller domain.Address, price string, currency domain.Address) (*Ask, error)
	CancelAsk(c ctx.Ctx, id Id, caller domain.Address) error
	FillAsk(c ctx.Ctx, id Id, params FillAskParams) (*Ask, error)
}

type CreatedEvent struct {
	Ask Ask `json:"ask"`
}

type PriceUpdatedEvent struct {
	Ask Ask `json:"ask"`
}

type CanceledEvent struct {
	Ask Ask `json:"ask"`
}

type FilledEvent struct {
	Ask    Ask            `json:"ask"`
	Buyer  domain.Address `json:"buyer"`
	Finder domain.Address `json:"finder"`
}
