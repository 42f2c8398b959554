package domain

import (
	"math/big"
	"strings"
)

var (
	Big0     = big.NewInt(0)
	Big1     = big.NewInt(1)
	Big100   = big.NewInt(100)
	Big10000 = big.NewInt(10000)
)

type SortDir int8

const (
	SortDirAsc  = 1
	SortDirDesc = -1
)

type TokenType int

const (
	TokenType721  TokenType = 721
	TokenType1155 TokenType = 1155
)

type ChainId int32

type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

// NativeCurrency is the currency sentinel for the chain's native asset.
const NativeCurrency = EmptyAddress

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerPtr() *Address {
	res := a.ToLower()
	return &res
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a.Equals(EmptyAddress)
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

// Bps is a fee ratio in basis points, valid in [0, 10000].
type Bps int64

func (b Bps) Valid() bool {
	return b >= 0 && b <= 10000
}

// Of takes b basis points of amount with floor division.
func (b Bps) Of(amount *big.Int) *big.Int {
	res := new(big.Int).Mul(amount, big.NewInt(int64(b)))
	return res.Div(res, Big10000)
}

type Table string

const (
	TableAsks             Table = "asks"
	TableOffers           Table = "offers"
	TableOfferCounters    Table = "offer_counters"
	TableAuctions         Table = "auctions"
	TableOngoingAuctions  Table = "ongoing_auctions"
	TablePuts             Table = "puts"
	TablePutCounters      Table = "put_counters"
	TableFeeSettings      Table = "fee_settings"
	TableModuleApprovals  Table = "module_approvals"
	TableRoyaltySchedules Table = "royalty_schedules"
	TableActivities       Table = "activities"
)

func ToBigInt(nums []string) ([]*big.Int, error) {
	var bns []*big.Int
	for _, n := range nums {
		bn, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, ErrInvalidNumberFormat
		}
		bns = append(bns, bn)
	}
	return bns, nil
}

// MustBigInt parses a stored decimal amount. Records only ever hold values
// written through ParseAmount, so failing to parse means corrupted storage.
func MustBigInt(num string) *big.Int {
	if num == "" {
		return new(big.Int)
	}
	bn, ok := new(big.Int).SetString(num, 10)
	if !ok {
		panic("invalid stored amount: " + num)
	}
	return bn
}

// ParseAmount parses a non-negative decimal amount supplied by a caller.
func ParseAmount(num string) (*big.Int, error) {
	bn, ok := new(big.Int).SetString(num, 10)
	if !ok || bn.Sign() < 0 {
		return nil, ErrInvalidNumberFormat
	}
	return bn, nil
}

var ChainIdWrappedNativeMap map[ChainId]Address = map[ChainId]Address{
	// eth
	1: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	// goerli
	5: "0xb4fbf271143f4fbf7b91a5ded31805e42b2208d6",
	// bsc
	56: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c",
	// fantom
	250: "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83",
}
