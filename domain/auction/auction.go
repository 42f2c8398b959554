package auction

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/exchange"
)

// Auction holds the fields fixed at creation. Bidding state lives in
// Ongoing; the two records are created, read and deleted together once the
// auction starts, never one without the other.
type Auction struct {
	ChainId         domain.ChainId    `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address    `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId    `json:"tokenId" bson:"tokenId"`
	Seller          domain.Address    `json:"seller" bson:"seller"`
	ReservePrice    string            `json:"reservePrice" bson:"reservePrice"`
	DurationSec     int64             `json:"duration" bson:"duration"`
	Features        exchange.Features `json:"features" bson:"features"`
	CreatedAt       time.Time         `json:"createdAt" bson:"createdAt"`
}

// Ongoing is the mutable bidding state of a started auction.
type Ongoing struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
	HighestBid      string         `json:"highestBid" bson:"highestBid"`
	HighestBidder   domain.Address `json:"highestBidder" bson:"highestBidder"`
	// Finder referred the current highest bid and is paid on settlement.
	Finder       domain.Address `json:"finder" bson:"finder"`
	FirstBidTime time.Time      `json:"firstBidTime" bson:"firstBidTime"`
}

func (a *Auction) ToId() Id {
	return Id{
		ChainId:         a.ChainId,
		ContractAddress: a.ContractAddress,
		TokenId:         a.TokenId,
	}
}

func (a *Auction) NftId() exchange.NftId {
	return exchange.NftId(a.ToId())
}

func (o *Ongoing) ToId() Id {
	return Id{
		ChainId:         o.ChainId,
		ContractAddress: o.ContractAddress,
		TokenId:         o.TokenId,
	}
}

// EndTime is when the auction closes, valid only once started.
func (a *Auction) EndTime(ongoing *Ongoing) time.Time {
	return ongoing.FirstBidTime.Add(time.Duration(a.DurationSec) * time.Second)
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
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
	FindOne(c ctx.Ctx, id Id) (*Auction, error)
	Upsert(c ctx.Ctx, auction *Auction) error
	Remove(c ctx.Ctx, id Id) error

	FindOngoing(c ctx.Ctx, id Id) (*Ongoing, error)
	UpsertOngoing(c ctx.Ctx, ongoing *Ongoing) error
	RemoveOngoing(c ctx.Ctx, id Id) error

	// RemoveBoth deletes the auction and its ongoing record atomically, so
	// a reader never observes one without the other.
	RemoveBoth(c ctx.Ctx, id Id) error
}

type CreateAuctionParams struct {
	Caller         domain.Address `json:"-"`
	ReservePrice   string         `json:"reservePrice" validate:"required"`
	DurationSec    int64          `json:"duration" validate:"required,gt=0"`
	Currency       domain.Address `json:"currency"`
	StartTime      *time.Time     `json:"startTime"`
	Expiry         *time.Time     `json:"expiry"`
	FundsRecipient domain.Address `json:"fundsRecipient"`
	FindersFeeBps  domain.Bps     `json:"findersFeeBps"`
	ListingFeeBps  domain.Bps     `json:"listingFeeBps"`
	ListingFeeTo   domain.Address `json:"listingFeeRecipient"`
	TokenGate      domain.Address `json:"tokenGateToken"`
	TokenGateMin   string         `json:"tokenGateMinAmount"`
}

type CreateBidParams struct {
	Caller        domain.Address `json:"-"`
	Amount        string         `json:"amount" validate:"required"`
	Finder        domain.Address `json:"finder"`
	AttachedValue string         `json:"attachedValue"`
}

type UseCase interface {
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
	GetAuction(c ctx.Ctx, id Id) (*Auction, *Ongoing, error)
	CreateAuction(c ctx.Ctx, id Id, params CreateAuctionParams) (*Auction, error)
	SetAuctionReservePrice(c ctx.Ctx, id Id, caller domain.Address, reservePrice string) (*Auction, error)
	CancelAuction(c ctx.Ctx, id Id, caller domain.Address) error
	CreateBid(c ctx.Ctx, id Id, params CreateBidParams) (*Ongoing, error)
	SettleAuction(c ctx.Ctx, id Id) (*Auction, *Ongoing, error)
}

type CreatedEvent struct {
	Auction Auction `json:"auction"`
}

type ReservePriceUpdatedEvent struct {
	Auction Auction `json:"auction"`
}

type CanceledEvent struct {
	Auction Auction `json:"auction"`
}

type BidEvent struct {
	Auction  Auction `json:"auction"`
	Ongoing  Ongoing `json:"ongoing"`
	FirstBid bool    `json:"firstBid"`
	Extended bool    `json:"extended"`
}

type EndedEvent struct {
	Auction Auction        `json:"auction"`
	Ongoing Ongoing        `json:"ongoing"`
	Finder  domain.Address `json:"finder"`
}
