package ethereum

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestValidateMsgSignature(t *testing.T) {
	messageTemplate := "approve modx exchange session %s"
	privateKey, publicKey, err := GenerateKey()
	assert.NoError(t, err)
	address := crypto.PubkeyToAddress(*publicKey).Hex()
	nonce := "123456"
	message := []byte(fmt.Sprintf(messageTemplate, nonce))
	hash := accounts.TextHash(message)
	signature, err := crypto.Sign(hash, privateKey)
	assert.NoError(t, err)

	res, err := ValidateMsgSignature(message, hexutil.Encode(signature), address)
	assert.NoError(t, err)
	assert.True(t, res)

	// incorrect message
	res2, err := ValidateMsgSignature([]byte("654321"), hexutil.Encode(signature), address)
	assert.NoError(t, err)
	assert.False(t, res2)

	// incorrect signer
	_, pubKey, err := GenerateKey()
	assert.NoError(t, err)
	res3, err := ValidateMsgSignature(message, hexutil.Encode(signature), crypto.PubkeyToAddress(*pubKey).Hex())
	assert.NoError(t, err)
	assert.False(t, res3)
}
