package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
)

// envSigner is demo glue: a deterministic local signer configured from the
// environment. Real deployments plug in a wallet-backed signer; the engine
// only sees the domain.Signer capability either way.
type envSigner struct {
	address string
	key     []byte
}

func newEnvSigner(address string) (*envSigner, error) {
	if address == "" {
		return nil, errors.New("WALLET_ADDRESS is not set")
	}
	key := os.Getenv("WALLET_SIGNING_KEY")
	if key == "" {
		return nil, errors.New("WALLET_SIGNING_KEY is not set")
	}
	return &envSigner{address: address, key: []byte(key)}, nil
}

func (s *envSigner) Address() string { return s.address }

func (s *envSigner) SignMessage(msg []byte) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
