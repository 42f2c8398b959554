package put

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
)

// Put is a covered put option: the seller escrows the strike in native
// currency at creation; the NFT holder who buys the option may exercise it
// before expiry by delivering the NFT for the strike net of fees. The
// escrowed strike is released exactly once, along exactly one of cancel
// (pre-purchase), exercise, or reclaim (post-expiry).
type Put struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
	PutId           uint64         `json:"putId" bson:"putId"`
	Seller          domain.Address `json:"seller" bson:"seller"`
	Buyer           domain.Address `json:"buyer,omitempty" bson:"buyer,omitempty"`
	Premium         string         `json:"premium" bson:"premium"`
	Strike          string         `json:"strike" bson:"strike"`
	Expiry          time.Time      `json:"expiry" bson:"expiry"`
	CreatedAt       time.Time      `json:"createdAt" bson:"createdAt"`
}

func (p *Put) ToId() Id {
	return Id{
		ChainId:         p.ChainId,
		ContractAddress: p.ContractAddress,
		TokenId:         p.TokenId,
		PutId:           p.PutId,
	}
}

func (p *Put) NftId() exchange.NftId {
	return exchange.NftId{
		ChainId:         p.ChainId,
		ContractAddress: p.ContractAddress,
		TokenId:         p.TokenId,
	}
}

func (p *Put) Purchased() bool {
	return !p.Buyer.IsEmpty()
}

type Id struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
	PutId           uint64         `json:"putId" bson:"putId"`
}

type FindAllOptions struct {
	ChainId         *domain.ChainId `bson:"chainId"`
	ContractAddress *domain.Address `bson:"contractAddress"`
	TokenId         *domain.TokenId `bson:"tokenId"`
	Seller          *domain.Address `bson:"seller"`
	Buyer           *domain.Address `bson:"buyer"`
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

func WithSeller(seller domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Seller = seller.ToLowerPtr()
		return nil
	}
}

func WithBuyer(buyer domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Buyer = buyer.ToLowerPtr()
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
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Put, error)
	FindOne(c ctx.Ctx, id Id) (*Put, error)
	Upsert(c ctx.Ctx, put *Put) error
	Remove(c ctx.Ctx, id Id) error
	NextPutId(c ctx.Ctx, nftId exchange.NftId) (uint64, error)
}

type CreatePutParams struct {
	Caller        domain.Address `json:"-"`
	Premium       string         `json:"premium" validate:"required"`
	Strike        string         `json:"strike" validate:"required"`
	Expiry        time.Time      `json:"expiry" validate:"required"`
	AttachedValue string         `json:"attachedValue"`
}

type BuyPutParams struct {
	Caller domain.Address `json:"-"`
	// Strike is a commit-and-check against stale client state.
	Strike        string `json:"strike" validate:"required"`
	Premium       string `json:"premium" validate:"required"`
	AttachedValue string `json:"attachedValue"`
}

type UseCase interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Put, error)
	GetPut(c ctx.Ctx, id Id) (*Put, error)
	CreatePut(c ctx.Ctx, nftId exchange.NftId, params CreatePutParams) (*Put, error)
	CancelPut(c ctx.Ctx, id Id, caller domain.Address) error
	BuyPut(c ctx.Ctx, id Id, params BuyPutParams) (*Put, error)
	ExercisePut(c ctx.Ctx, id Id, caller domain.Address) (*Put, error)
	ReclaimPut(c ctx.Ctx, id Id, caller domain.Address) error
}

type CreatedEvent struct {
	Put Put `json:"put"`
}

type CanceledEvent struct {
	Put Put `json:"put"`
}

type PurchasedEvent struct {
	Put Put `json:"put"`
}

type ExercisedEvent struct {
	Put Put `json:"put"`
}

type ReclaimedEvent struct {
	Put Put `json:"put"`
}
