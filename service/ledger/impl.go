// Package ledger is the in-memory implementation of the asset
// collaborators. It backs local runs and the settlement tests; a chain
// client can replace it behind the same interfaces.
package ledger

import (
	"math/big"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain"
	ledgerdomain "github.com/modx-xyz/exchange/domain/ledger"
)

var (
	ErrInsufficientFunds = xerrors.New("ledger: insufficient funds")
	ErrNotOwner          = xerrors.New("ledger: not token owner")
	ErrNotApproved       = xerrors.New("ledger: operator not approved")
	ErrAllowance         = xerrors.New("ledger: allowance exceeded")
	ErrRejected          = xerrors.New("ledger: transfer rejected by recipient")
	ErrUnknownToken      = xerrors.New("ledger: unknown token")
	ErrUnknownChain      = xerrors.New("ledger: unknown chain")
)

type nftKey struct {
	contract domain.Address
	tokenId  domain.TokenId
}

type approvalKey struct {
	scope    domain.Address // erc20 currency or erc721 contract
	owner    domain.Address
	operator domain.Address
}

// InMemory holds every balance behind one mutex. Throughput is not a
// concern here; correctness under the concurrent settlement tests is.
type InMemory struct {
	mu sync.Mutex

	native   map[domain.Address]*big.Int
	balances map[domain.Address]map[domain.Address]*big.Int // currency -> owner
	allows   map[approvalKey]*big.Int

	owners    map[nftKey]domain.Address
	operators map[approvalKey]bool

	wrapped map[domain.ChainId]domain.Address

	// reject and delay simulate hostile or slow native receivers.
	reject map[domain.Address]bool
	delay  map[domain.Address]time.Duration
}

func New() *InMemory {
	return &InMemory{
		native:    map[domain.Address]*big.Int{},
		balances:  map[domain.Address]map[domain.Address]*big.Int{},
		allows:    map[approvalKey]*big.Int{},
		owners:    map[nftKey]domain.Address{},
		operators: map[approvalKey]bool{},
		wrapped:   map[domain.ChainId]domain.Address{},
		reject:    map[domain.Address]bool{},
		delay:     map[domain.Address]time.Duration{},
	}
}

// The asset interfaces share method names with different signatures, so
// InMemory exposes one view per interface instead of implementing them on
// the struct itself.

func (l *InMemory) Native() ledgerdomain.Native               { return nativeView{l} }
func (l *InMemory) Erc20() ledgerdomain.Erc20                 { return erc20View{l} }
func (l *InMemory) Erc721() ledgerdomain.Erc721               { return erc721View{l} }
func (l *InMemory) WrappedNative() ledgerdomain.WrappedNative { return wrappedView{l} }

type nativeView struct{ l *InMemory }

func (v nativeView) BalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error) {
	return v.l.NativeBalanceOf(c, account)
}

func (v nativeView) Transfer(c ctx.Ctx, from, to domain.Address, amount *big.Int) error {
	return v.l.NativeTransfer(c, from, to, amount)
}

type erc20View struct{ l *InMemory }

func (v erc20View) BalanceOf(c ctx.Ctx, currency, owner domain.Address) (*big.Int, error) {
	return v.l.Erc20BalanceOf(c, currency, owner)
}

func (v erc20View) Transfer(c ctx.Ctx, currency, from, to domain.Address, amount *big.Int) error {
	return v.l.Erc20Transfer(c, currency, from, to, amount)
}

func (v erc20View) TransferFrom(c ctx.Ctx, currency, operator, from, to domain.Address, amount *big.Int) error {
	return v.l.Erc20TransferFrom(c, currency, operator, from, to, amount)
}

type erc721View struct{ l *InMemory }

func (v erc721View) OwnerOf(c ctx.Ctx, contract domain.Address, tokenId domain.TokenId) (domain.Address, error) {
	return v.l.OwnerOf(c, contract, tokenId)
}

func (v erc721View) IsApprovedForAll(c ctx.Ctx, contract, owner, operator domain.Address) (bool, error) {
	return v.l.IsApprovedForAll(c, contract, owner, operator)
}

func (v erc721View) TransferFrom(c ctx.Ctx, contract, operator, from, to domain.Address, tokenId domain.TokenId) error {
	return v.l.Erc721TransferFrom(c, contract, operator, from, to, tokenId)
}

type wrappedView struct{ l *InMemory }

func (v wrappedView) Address(chainId domain.ChainId) domain.Address {
	return v.l.WrappedAddress(chainId)
}

func (v wrappedView) Deposit(c ctx.Ctx, chainId domain.ChainId, holder domain.Address, amount *big.Int) error {
	return v.l.Deposit(c, chainId, holder, amount)
}

func (v wrappedView) Transfer(c ctx.Ctx, chainId domain.ChainId, from, to domain.Address, amount *big.Int) error {
	return v.l.WrappedTransfer(c, chainId, from, to, amount)
}

func (v wrappedView) BalanceOf(c ctx.Ctx, chainId domain.ChainId, owner domain.Address) (*big.Int, error) {
	return v.l.WrappedBalanceOf(c, chainId, owner)
}

func (l *InMemory) NativeBalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(l.native, account.ToLower()), nil
}

func (l *InMemory) NativeTransfer(c ctx.Ctx, from, to domain.Address, amount *big.Int) error {
	to = to.ToLower()

	l.mu.Lock()
	delay := l.delay[to]
	l.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Done():
			return c.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check under the lock: a delivery whose budget expired while it
	// was waiting must not commit after the caller has fallen back.
	if err := c.Err(); err != nil {
		return err
	}
	if l.reject[to] {
		return ErrRejected
	}
	return l.moveLocked(l.native, from.ToLower(), to, amount)
}

func (l *InMemory) Erc20BalanceOf(c ctx.Ctx, currency, owner domain.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(l.currencyLocked(currency), owner.ToLower()), nil
}

func (l *InMemory) Erc20Transfer(c ctx.Ctx, currency, from, to domain.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(l.currencyLocked(currency), from.ToLower(), to.ToLower(), amount)
}

func (l *InMemory) Erc20TransferFrom(c ctx.Ctx, currency, operator, from, to domain.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := approvalKey{scope: currency.ToLower(), owner: from.ToLower(), operator: operator.ToLower()}
	allowed := l.allows[key]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return ErrAllowance
	}
	if err := l.moveLocked(l.currencyLocked(currency), from.ToLower(), to.ToLower(), amount); err != nil {
		return err
	}
	l.allows[key] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (l *InMemory) OwnerOf(c ctx.Ctx, contract domain.Address, tokenId domain.TokenId) (domain.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[nftKey{contract: contract.ToLower(), tokenId: tokenId}]
	if !ok {
		return domain.EmptyAddress, ErrUnknownToken
	}
	return owner, nil
}

func (l *InMemory) IsApprovedForAll(c ctx.Ctx, contract, owner, operator domain.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.operators[approvalKey{scope: contract.ToLower(), owner: owner.ToLower(), operator: operator.ToLower()}], nil
}

func (l *InMemory) Erc721TransferFrom(c ctx.Ctx, contract, operator, from, to domain.Address, tokenId domain.TokenId) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := nftKey{contract: contract.ToLower(), tokenId: tokenId}
	owner, ok := l.owners[key]
	if !ok {
		return ErrUnknownToken
	}
	if !owner.Equals(from) {
		return ErrNotOwner
	}
	if !operator.Equals(from) &&
		!l.operators[approvalKey{scope: contract.ToLower(), owner: owner, operator: operator.ToLower()}] {
		return ErrNotApproved
	}
	l.owners[key] = to.ToLower()
	return nil
}

func (l *InMemory) WrappedAddress(chainId domain.ChainId) domain.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wrapped[chainId]
}

func (l *InMemory) Deposit(c ctx.Ctx, chainId domain.ChainId, holder domain.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	wrapped, ok := l.wrapped[chainId]
	if !ok {
		return ErrUnknownChain
	}
	holder = holder.ToLower()
	have := l.balanceLocked(l.native, holder)
	if have.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	l.native[holder] = new(big.Int).Sub(have, amount)
	balances := l.currencyLocked(wrapped)
	balances[holder] = new(big.Int).Add(l.balanceLocked(balances, holder), amount)
	return nil
}

func (l *InMemory) WrappedTransfer(c ctx.Ctx, chainId domain.ChainId, from, to domain.Address, amount *big.Int) error {
	l.mu.Lock()
	wrapped, ok := l.wrapped[chainId]
	l.mu.Unlock()
	if !ok {
		return ErrUnknownChain
	}
	return l.Erc20Transfer(c, wrapped, from, to, amount)
}

func (l *InMemory) WrappedBalanceOf(c ctx.Ctx, chainId domain.ChainId, owner domain.Address) (*big.Int, error) {
	l.mu.Lock()
	wrapped, ok := l.wrapped[chainId]
	l.mu.Unlock()
	if !ok {
		return nil, ErrUnknownChain
	}
	return l.Erc20BalanceOf(c, wrapped, owner)
}

// Test and bootstrap helpers.

func (l *InMemory) MintNative(account domain.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account = account.ToLower()
	l.native[account] = new(big.Int).Add(l.balanceLocked(l.native, account), amount)
}

func (l *InMemory) MintErc20(currency, owner domain.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balances := l.currencyLocked(currency)
	owner = owner.ToLower()
	balances[owner] = new(big.Int).Add(l.balanceLocked(balances, owner), amount)
}

func (l *InMemory) MintNft(contract domain.Address, tokenId domain.TokenId, owner domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[nftKey{contract: contract.ToLower(), tokenId: tokenId}] = owner.ToLower()
}

func (l *InMemory) Approve(currency, owner, operator domain.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allows[approvalKey{scope: currency.ToLower(), owner: owner.ToLower(), operator: operator.ToLower()}] = new(big.Int).Set(amount)
}

func (l *InMemory) SetApprovalForAll(contract, owner, operator domain.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.operators[approvalKey{scope: contract.ToLower(), owner: owner.ToLower(), operator: operator.ToLower()}] = approved
}

func (l *InMemory) SetWrappedNative(chainId domain.ChainId, address domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wrapped[chainId] = address.ToLower()
}

// RejectNative makes every native transfer to account fail, standing in
// for a receiver that reverts.
func (l *InMemory) RejectNative(account domain.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reject[account.ToLower()] = reject
}

// DelayNative makes native transfers to account stall, standing in for a
// receiver that burns the whole call budget.
func (l *InMemory) DelayNative(account domain.Address, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay[account.ToLower()] = d
}

func (l *InMemory) balanceLocked(balances map[domain.Address]*big.Int, account domain.Address) *big.Int {
	if b, ok := balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *InMemory) currencyLocked(currency domain.Address) map[domain.Address]*big.Int {
	currency = currency.ToLower()
	balances, ok := l.balances[currency]
	if !ok {
		balances = map[domain.Address]*big.Int{}
		l.balances[currency] = balances
	}
	return balances
}

func (l *InMemory) moveLocked(balances map[domain.Address]*big.Int, from, to domain.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInsufficientFunds
	}
	have := l.balanceLocked(balances, from)
	if have.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	balances[from] = new(big.Int).Sub(have, amount)
	balances[to] = new(big.Int).Add(l.balanceLocked(balances, to), amount)
	return nil
}
