package clob

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Proxy-factory constants for the CREATE2 derivation. The proxy address is
// a pure function of the owner account; no network call is involved.
const (
	proxyFactoryAddress  = "0xaB45c5A4B0c941a2F231C04C3f49182e1A254052"
	proxyWalletInitCodeH = "0x56e3f3d40b50b5e41e339d1cbdf2e64c810e1518d635e731ef0f0cfcf9bf4cbd"
)

var ErrInvalidAccountAddress = errors.New("account id is not a 20-byte hex address")

// DeriveProxyAddress derives the smart-contract proxy account address for
// an externally-owned account, CREATE2 style: the owner address is the
// salt, the factory and init-code hash are fixed. A malformed owner
// address fails here rather than deriving a junk proxy address.
func DeriveProxyAddress(accountID string) (string, error) {
	owner, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(accountID), "0x"))
	if err != nil || len(owner) != 20 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountAddress, accountID)
	}

	factory := mustHex(proxyFactoryAddress)
	initCodeHash := mustHex(proxyWalletInitCodeH)
	salt := keccak256(leftPad32(owner))

	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, factory...)
	buf = append(buf, salt...)
	buf = append(buf, initCodeHash...)

	digest := keccak256(buf)
	return "0x" + hex.EncodeToString(digest[12:]), nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// mustHex decodes the fixed factory constants above; they are known-good.
func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		panic(err)
	}
	return b
}
