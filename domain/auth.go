package domain

import (
	"errors"

	"github.com/golang-jwt/jwt"

	"github.com/modx-xyz/exchange/base/ctx"
)

type JwtCustomClaims struct {
	Address string `json:"data"` // name data for backward compatibility
	jwt.StandardClaims
}

var (
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrInvalidSignature = errors.New("invalid signature")
)

type AuthUseCase interface {
	// GenerateNonce issues a one-shot nonce the caller must embed in the
	// message they sign.
	GenerateNonce(ctx ctx.Ctx, address Address) (string, error)
	// SignToken verifies the wallet signature over the nonce message and
	// issues an access token for address.
	SignToken(ctx ctx.Ctx, address Address, signature string) (string, error)
	ParseToken(ctx ctx.Ctx, token string) (address string, err error)
}
