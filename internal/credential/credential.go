// Package credential issues oracle credentials. A credential is an opaque
// badge string minted once per principal at registration time; it is
// returned to the caller and stored on the oracle record.
package credential

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/breachmarket/breachmarket/internal/idgen"
)

var ErrAlreadyMinted = errors.New("credential already minted")

// Minter mints credentials for registered oracles.
type Minter interface {
	Mint(ctx context.Context, principal string) (string, error)
}

// Issuer is an in-process Minter. Credentials are random badge IDs,
// unique per principal.
type Issuer struct {
	minted map[string]string // principal -> credential
	mu     sync.Mutex
}

// NewIssuer creates a new credential issuer.
func NewIssuer() *Issuer {
	return &Issuer{minted: make(map[string]string)}
}

// Mint issues a credential for principal. Minting twice for the same
// principal fails; registration is a one-shot operation.
func (i *Issuer) Mint(ctx context.Context, principal string) (string, error) {
	principal = strings.ToLower(principal)

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.minted[principal]; ok {
		return "", ErrAlreadyMinted
	}
	cred := idgen.WithPrefix("badge_")
	i.minted[principal] = cred
	return cred, nil
}
