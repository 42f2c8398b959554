package usecase

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/ethereum"
	"github.com/modx-xyz/exchange/domain"
	"github.com/modx-xyz/exchange/domain/keys"
	"github.com/modx-xyz/exchange/service/redis"
)

const nonceTTL = 10 * time.Minute

type AuthUseCaseCfg struct {
	JwtSecret string
	// SignatureMsg is the personal-sign template, with one %s slot for the
	// nonce.
	SignatureMsg string
	Redis        redis.Service
	TokenTTL     time.Duration
}

type impl struct {
	jwtSecret    []byte
	signatureMsg string
	redis        redis.Service
	tokenTTL     time.Duration
}

func New(cfg *AuthUseCaseCfg) domain.AuthUseCase {
	tokenTTL := cfg.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}
	return &impl{
		jwtSecret:    []byte(cfg.JwtSecret),
		signatureMsg: cfg.SignatureMsg,
		redis:        cfg.Redis,
		tokenTTL:     tokenTTL,
	}
}

func (im *impl) GenerateNonce(c ctx.Ctx, address domain.Address) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000000))
	if err != nil {
		return "", err
	}
	nonce := n.String()

	key := keys.RedisKey(keys.PfxNonce, address.ToLowerStr())
	if err := im.redis.Set(c, key, []byte(nonce), nonceTTL); err != nil {
		c.WithField("err", err).Error("redis.Set failed")
		return "", err
	}
	return nonce, nil
}

func (im *impl) SignToken(c ctx.Ctx, address domain.Address, signature string) (string, error) {
	key := keys.RedisKey(keys.PfxNonce, address.ToLowerStr())
	nonce, err := im.redis.Get(c, key)
	if err == redis.ErrNotFound {
		return "", domain.ErrInvalidNonce
	} else if err != nil {
		c.WithField("err", err).Error("redis.Get failed")
		return "", err
	}

	// a nonce is single use regardless of the signature's validity
	defer im.redis.Del(c, key)

	msg := []byte(fmt.Sprintf(im.signatureMsg, string(nonce)))
	if isValid, err := ethereum.ValidateMsgSignature(msg, signature, string(address)); err != nil {
		c.WithField("err", err).Error("ethereum.ValidateMsgSignature failed")
		return "", err
	} else if !isValid {
		return "", domain.ErrInvalidSignature
	}

	claims := domain.JwtCustomClaims{
		Address: address.ToLowerStr(),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(im.tokenTTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	if ss, err := token.SignedString(im.jwtSecret); err != nil {
		c.WithField("err", err).Error("token.SignedString failed")
		return "", err
	} else {
		return ss, nil
	}
}

func (im *impl) ParseToken(c ctx.Ctx, str string) (string, error) {
	token, err := jwt.ParseWithClaims(str, &domain.JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return im.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*domain.JwtCustomClaims); ok && token.Valid {
		return claims.Address, nil
	}

	return "", domain.ErrInvalidSignature
}
