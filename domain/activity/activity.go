package activity

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

type Type string

const (
	// asks
	TypeList          Type = "list"
	TypeUpdateListing Type = "updateListing"
	TypeCancelListing Type = "cancelListing"
	TypeBuy           Type = "buy"

	// offers
	TypeCreateOffer Type = "createOffer"
	TypeUpdateOffer Type = "updateOffer"
	TypeCancelOffer Type = "cancelOffer"
	TypeOfferTaken  Type = "offerTaken"

	// auctions
	TypeCreateAuction      Type = "createAuction"
	TypeUpdateReservePrice Type = "updateReservePrice"
	TypeCancelAuction      Type = "cancelAuction"
	TypePlaceBid           Type = "placeBid"
	TypeAuctionSettled     Type = "auctionSettled"

	// puts
	TypeCreatePut   Type = "createPut"
	TypeCancelPut   Type = "cancelPut"
	TypeBuyPut      Type = "buyPut"
	TypeExercisePut Type = "exercisePut"
	TypeReclaimPut  Type = "reclaimPut"

	// cross-module settlement
	TypeSale Type = "sale"
)

// Activity is one row of the queryable settlement history. Account is the
// actor, To the counterparty where one exists.
type Activity struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
	Type            Type           `json:"type" bson:"type"`
	Account         domain.Address `json:"account" bson:"account"`
	To              domain.Address `json:"to,omitempty" bson:"to,omitempty"`
	Price           string         `json:"price" bson:"price"`
	PriceInNative   float64        `json:"priceInNative" bson:"priceInNative"`
	PaymentToken    domain.Address `json:"paymentToken" bson:"paymentToken"`
	Time            time.Time      `json:"time" bson:"time"`
}

type FindAllOptions struct {
	ChainId         *domain.ChainId
	ContractAddress *domain.Address
	TokenId         *domain.TokenId
	Account         *domain.Address
	Types           []Type
	TimeGTE         *time.Time
	Offset          *int32
	Limit           *int32
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

// WithAccount matches either side of the activity.
func WithAccount(account domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Account = account.ToLowerPtr()
		return nil
	}
}

func WithTypes(types ...Type) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Types = types
		return nil
	}
}

func WithTimeGTE(t time.Time) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.TimeGTE = &t
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

type Repo interface {
	Insert(c ctx.Ctx, activity *Activity) error
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Activity, error)
	Count(c ctx.Ctx, opts ...FindAllOptionsFunc) (int, error)
}

type UseCase interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Activity, error)
	Count(c ctx.Ctx, opts ...FindAllOptionsFunc) (int, error)
}
