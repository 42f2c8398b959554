package exchange

import (
	"time"

	"github.com/modx-xyz/exchange/domain"
)

// Feature marks which optional attributes of a record are populated. The
// base record stays small for the common case; each optional attribute
// lives in its own side field and is meaningful only while its bit is set.
type Feature uint32

const (
	FeatureTokenGate Feature = 1 << iota
	FeatureListingFee
	FeatureFindersFee
	FeatureExpiry
	FeatureFundsRecipient
	FeatureStartTime
	FeatureErc20Currency
	FeatureBuyer
)

func HasFeature(mask, flag Feature) bool {
	return mask&flag != 0
}

func SetFeature(mask, flag Feature) Feature {
	return mask | flag
}

func ClearFeature(mask, flag Feature) Feature {
	return mask &^ flag
}

type TokenGate struct {
	Token     domain.Address `json:"token" bson:"token"`
	MinAmount string         `json:"minAmount" bson:"minAmount"`
}

type ListingFee struct {
	Bps       domain.Bps     `json:"bps" bson:"bps"`
	Recipient domain.Address `json:"recipient" bson:"recipient"`
}

// Features is the optional-attribute record shared by listings, auctions
// and offers. Every setter owns its feature bit: setting a default value
// clears the bit, so "feature absent" and "feature present with the
// inactive value" behave identically everywhere they are checked.
type Features struct {
	Mask Feature `json:"mask" bson:"mask"`

	TokenGateRec  TokenGate      `json:"tokenGate,omitempty" bson:"tokenGate,omitempty"`
	ListingFeeRec ListingFee     `json:"listingFee,omitempty" bson:"listingFee,omitempty"`
	FindersFee    domain.Bps     `json:"findersFeeBps,omitempty" bson:"findersFeeBps,omitempty"`
	ExpiryAt      *time.Time     `json:"expiry,omitempty" bson:"expiry,omitempty"`
	FundsReceiver domain.Address `json:"fundsRecipient,omitempty" bson:"fundsRecipient,omitempty"`
	StartAt       *time.Time     `json:"startTime,omitempty" bson:"startTime,omitempty"`
	Erc20         domain.Address `json:"currency,omitempty" bson:"currency,omitempty"`
	PrivateBuyer  domain.Address `json:"buyer,omitempty" bson:"buyer,omitempty"`
}

func (f *Features) SetTokenGate(token domain.Address, minAmount string) {
	if token.IsEmpty() || minAmount == "" || minAmount == "0" {
		f.Mask = ClearFeature(f.Mask, FeatureTokenGate)
		f.TokenGateRec = TokenGate{}
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureTokenGate)
	f.TokenGateRec = TokenGate{Token: token.ToLower(), MinAmount: minAmount}
}

func (f *Features) TokenGate() (TokenGate, bool) {
	if !HasFeature(f.Mask, FeatureTokenGate) {
		return TokenGate{}, false
	}
	return f.TokenGateRec, true
}

func (f *Features) SetListingFee(bps domain.Bps, recipient domain.Address) {
	if bps == 0 || recipient.IsEmpty() {
		f.Mask = ClearFeature(f.Mask, FeatureListingFee)
		f.ListingFeeRec = ListingFee{}
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureListingFee)
	f.ListingFeeRec = ListingFee{Bps: bps, Recipient: recipient.ToLower()}
}

func (f *Features) ListingFee() (ListingFee, bool) {
	if !HasFeature(f.Mask, FeatureListingFee) {
		return ListingFee{}, false
	}
	return f.ListingFeeRec, true
}

func (f *Features) SetFindersFee(bps domain.Bps) {
	if bps == 0 {
		f.Mask = ClearFeature(f.Mask, FeatureFindersFee)
		f.FindersFee = 0
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureFindersFee)
	f.FindersFee = bps
}

func (f *Features) FindersFeeBps() domain.Bps {
	if !HasFeature(f.Mask, FeatureFindersFee) {
		return 0
	}
	return f.FindersFee
}

func (f *Features) SetExpiry(expiry *time.Time) {
	if expiry == nil || expiry.IsZero() {
		f.Mask = ClearFeature(f.Mask, FeatureExpiry)
		f.ExpiryAt = nil
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureExpiry)
	t := expiry.UTC()
	f.ExpiryAt = &t
}

func (f *Features) Expiry() (time.Time, bool) {
	if !HasFeature(f.Mask, FeatureExpiry) || f.ExpiryAt == nil {
		return time.Time{}, false
	}
	return *f.ExpiryAt, true
}

func (f *Features) SetFundsRecipient(recipient domain.Address) {
	if recipient.IsEmpty() {
		f.Mask = ClearFeature(f.Mask, FeatureFundsRecipient)
		f.FundsReceiver = ""
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureFundsRecipient)
	f.FundsReceiver = recipient.ToLower()
}

// FundsRecipient resolves where sale proceeds go, falling back to the
// record owner when the feature is unset.
func (f *Features) FundsRecipient(fallback domain.Address) domain.Address {
	if !HasFeature(f.Mask, FeatureFundsRecipient) || f.FundsReceiver.IsEmpty() {
		return fallback
	}
	return f.FundsReceiver
}

func (f *Features) SetStartTime(start *time.Time) {
	if start == nil || start.IsZero() {
		f.Mask = ClearFeature(f.Mask, FeatureStartTime)
		f.StartAt = nil
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureStartTime)
	t := start.UTC()
	f.StartAt = &t
}

func (f *Features) StartTime() (time.Time, bool) {
	if !HasFeature(f.Mask, FeatureStartTime) || f.StartAt == nil {
		return time.Time{}, false
	}
	return *f.StartAt, true
}

// SetCurrency flips the ERC-20 bit, it never just overwrites the value.
// Toggling back to the native sentinel must clear the bit or later
// "is ERC-20" checks would desync from the stored address.
func (f *Features) SetCurrency(currency domain.Address) {
	if currency.IsEmpty() {
		f.Mask = ClearFeature(f.Mask, FeatureErc20Currency)
		f.Erc20 = ""
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureErc20Currency)
	f.Erc20 = currency.ToLower()
}

// Currency returns the payment currency, the native sentinel when no
// ERC-20 is set.
func (f *Features) Currency() domain.Address {
	if !HasFeature(f.Mask, FeatureErc20Currency) {
		return domain.NativeCurrency
	}
	return f.Erc20
}

func (f *Features) SetBuyer(buyer domain.Address) {
	if buyer.IsEmpty() {
		f.Mask = ClearFeature(f.Mask, FeatureBuyer)
		f.PrivateBuyer = ""
		return
	}
	f.Mask = SetFeature(f.Mask, FeatureBuyer)
	f.PrivateBuyer = buyer.ToLower()
}

func (f *Features) Buyer() (domain.Address, bool) {
	if !HasFeature(f.Mask, FeatureBuyer) {
		return "", false
	}
	return f.PrivateBuyer, true
}

// FullRecord is the assembled view of a Features record with inactive
// defaults filled in for unset attributes.
type FullRecord struct {
	TokenGate      TokenGate      `json:"tokenGate"`
	ListingFee     ListingFee     `json:"listingFee"`
	FindersFeeBps  domain.Bps     `json:"findersFeeBps"`
	Expiry         *time.Time     `json:"expiry"`
	FundsRecipient domain.Address `json:"fundsRecipient"`
	StartTime      *time.Time     `json:"startTime"`
	Currency       domain.Address `json:"currency"`
	Buyer          domain.Address `json:"buyer"`
}

func (f *Features) Full() FullRecord {
	full := FullRecord{
		FundsRecipient: domain.EmptyAddress,
		Currency:       domain.NativeCurrency,
		Buyer:          domain.EmptyAddress,
	}
	if gate, ok := f.TokenGate(); ok {
		full.TokenGate = gate
	}
	if fee, ok := f.ListingFee(); ok {
		full.ListingFee = fee
	}
	full.FindersFeeBps = f.FindersFeeBps()
	if expiry, ok := f.Expiry(); ok {
		full.Expiry = &expiry
	}
	if HasFeature(f.Mask, FeatureFundsRecipient) {
		full.FundsRecipient = f.FundsReceiver
	}
	if start, ok := f.StartTime(); ok {
		full.StartTime = &start
	}
	full.Currency = f.Currency()
	if buyer, ok := f.Buyer(); ok {
		full.Buyer = buyer
	}
	return full
}
