package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("Your Item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput       = errors.New("Given Param is not valid")
	ErrInvalidNumberFormat = errors.New("invalid number format")
	ErrInvalidChainId      = errors.New("invalid chain id")
	ErrInvalidAddress      = errors.New("Invalid address")

	// authorization errors. always fatal, never retryable.
	ErrNotTokenOwnerOrOperator = errors.New("caller is not token owner or approved operator")
	ErrNotSeller               = errors.New("caller is not seller")
	ErrNotBuyer                = errors.New("caller is not buyer")
	ErrModuleNotApproved       = errors.New("module transfers not approved by user")

	// state errors. the caller lost a race or holds a stale view.
	ErrExpired           = errors.New("record expired")
	ErrNotStarted        = errors.New("not started")
	ErrAuctionStarted    = errors.New("auction already started")
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrAuctionNotEnded   = errors.New("auction has not ended")
	ErrAuctionEnded      = errors.New("auction ended")
	ErrAlreadyPurchased  = errors.New("already purchased")
	ErrNotPurchased      = errors.New("not purchased")
	ErrNotExpired        = errors.New("not yet expired")

	// validation errors. caller-side bug, not retryable without new inputs.
	ErrInvalidFeeBps         = errors.New("fee bps out of range")
	ErrInvalidListingFee     = errors.New("listing fee requires both bps and recipient")
	ErrInvalidTokenGate      = errors.New("token gate requires both token and min amount")
	ErrInvalidStartTime      = errors.New("start time must be in the future")
	ErrInvalidExpiry         = errors.New("expiry must be after start time")
	ErrInvalidFundsRecipient = errors.New("funds recipient must not be zero")
	ErrInvalidReservePrice   = errors.New("invalid reserve price")
	ErrInvalidDuration       = errors.New("invalid duration")

	// payment errors
	ErrInsufficientValue      = errors.New("insufficient attached value")
	ErrTransferAmountMismatch = errors.New("token transfer delivered wrong amount")
	ErrInsolvent              = errors.New("royalty amounts exceed sale amount")
	ErrPriceMismatch          = errors.New("price does not match record")
	ErrCurrencyMismatch       = errors.New("currency does not match record")
	ErrMinimumBidNotMet       = errors.New("bid below minimum")
	ErrTokenGateInsufficient  = errors.New("token gate balance too low")
)
