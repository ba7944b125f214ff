// Package operator loads the fee payer key that signs every claim transaction.
//
// The key is returned to the caller and injected into the ledger client; it is
// never cached in package state.
package operator

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// secretKeyLength is the ed25519 seed followed by the public key.
const secretKeyLength = 64

// Load returns the operator private key.
//
// Decision tree:
//  1. secret non-empty → parse it as base58 or as a JSON byte array
//  2. otherwise → read keypairPath (solana-keygen JSON format)
func Load(secret, keypairPath string) (solana.PrivateKey, error) {
	if s := strings.TrimSpace(secret); s != "" {
		key, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("operator: OPERATOR_SECRET_KEY: %w", err)
		}
		return key, nil
	}
	if keypairPath == "" {
		return nil, fmt.Errorf("operator: no secret key or keypair path configured")
	}
	raw, err := os.ReadFile(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("operator: read keypair %s: %w", keypairPath, err)
	}
	key, err := Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("operator: keypair %s: %w", keypairPath, err)
	}
	return key, nil
}

// Parse accepts either a base58 string or a JSON array of 64 bytes.
func Parse(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	var raw []byte
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("decode JSON byte array: %w", err)
		}
	} else {
		decoded, err := base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("decode base58: %w", err)
		}
		raw = decoded
	}
	if len(raw) != secretKeyLength {
		return nil, fmt.Errorf("secret key must be %d bytes (got %d)", secretKeyLength, len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("secret key does not match its embedded public key")
	}
	return solana.PrivateKey(raw), nil
}
