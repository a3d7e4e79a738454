package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// Authority is the pool authority identity derived from a secp256k1 key.
// The authority ID used by the ledger is the key's address left-padded to
// 32 bytes, so the ID in config and the ID derived from key material can be
// cross-checked at startup. Request signing is the HMAC layer's job; the
// key itself is discarded after derivation.
type Authority struct {
	address common.Address
	id      domain.ID
}

// NewAuthority creates an Authority from a hex-encoded secp256k1 private
// key (with or without 0x prefix).
func NewAuthority(privateKeyHex string) (*Authority, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid authority key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)

	var id domain.ID
	copy(id[12:], addr.Bytes())

	return &Authority{address: addr, id: id}, nil
}

// Address returns the address derived from the authority's private key.
func (a *Authority) Address() common.Address {
	return a.address
}

// ID returns the 32-byte authority identifier used by the pool ledger.
func (a *Authority) ID() domain.ID {
	return a.id
}
