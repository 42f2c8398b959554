package exchange

import (
	"time"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
)

// NftId identifies a token a record is attached to. At most one active ask
// or auction may exist per NftId.
type NftId struct {
	ChainId         domain.ChainId `json:"chainId" bson:"chainId"`
	ContractAddress domain.Address `json:"contractAddress" bson:"contractAddress"`
	TokenId         domain.TokenId `json:"tokenId" bson:"tokenId"`
}

func (id NftId) ToLower() NftId {
	id.ContractAddress = id.ContractAddress.ToLower()
	return id
}

// Details is one leg of an executed exchange: what moved and how much.
type Details struct {
	TokenContract domain.Address `json:"tokenContract" bson:"tokenContract"`
	TokenId       domain.TokenId `json:"tokenId" bson:"tokenId"`
	Amount        string         `json:"amount" bson:"amount"`
}

// ExecutedEvent is the cross-module settlement signal. Every module that
// swaps a token against currency emits one, so a single indexer can follow
// all settlements uniformly.
type ExecutedEvent struct {
	Module  domain.Address `json:"module" bson:"module"`
	ChainId domain.ChainId `json:"chainId" bson:"chainId"`
	UserA   domain.Address `json:"userA" bson:"userA"`
	UserB   domain.Address `json:"userB" bson:"userB"`
	A       Details        `json:"a" bson:"a"`
	B       Details        `json:"b" bson:"b"`
	Time    time.Time      `json:"time" bson:"time"`
}

// Subscriber receives module events published through the dispatcher.
// Event payloads are the module event structs (AskCreatedEvent, ...),
// always carrying a full record snapshot, never a diff.
type Subscriber interface {
	HandleEvent(c ctx.Ctx, event interface{})
}

// Dispatcher fans module events out to subscribers without blocking
// settlement.
type Dispatcher interface {
	Publish(c ctx.Ctx, event interface{})
	Close()
}
