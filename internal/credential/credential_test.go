package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMint(t *testing.T) {
	issuer := NewIssuer()

	cred, err := issuer.Mint(context.Background(), "0xAAA")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !strings.HasPrefix(cred, "badge_") {
		t.Errorf("credential %q missing badge_ prefix", cred)
	}
}

func TestMintTwice(t *testing.T) {
	issuer := NewIssuer()
	ctx := context.Background()

	if _, err := issuer.Mint(ctx, "0xaaa"); err != nil {
		t.Fatalf("first Mint: %v", err)
	}
	// Same principal, different case.
	if _, err := issuer.Mint(ctx, "0xAAA"); !errors.Is(err, ErrAlreadyMinted) {
		t.Errorf("err = %v, want ErrAlreadyMinted", err)
	}
}

func TestMintUniquePerPrincipal(t *testing.T) {
	issuer := NewIssuer()
	ctx := context.Background()

	a, _ := issuer.Mint(ctx, "0xaaa")
	b, _ := issuer.Mint(ctx, "0xbbb")
	if a == b {
		t.Errorf("credentials not unique: %q", a)
	}
}
