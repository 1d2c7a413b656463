// seed registers development accounts for local testing.
// Idempotent: accounts whose email is already registered are skipped.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dsqrwym/Maian-sub000/internal/config"
	identityservice "github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/security"
	"github.com/dsqrwym/Maian-sub000/internal/server"
)

const devPassword = "Password123"

var devAccounts = []identityservice.RegisterInput{
	{Email: "dev@example.com", Username: "dev", Name: "Dev User"},
	{Email: "member@example.com", Username: "member", Name: "Member User"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver == "memory" {
		log.Fatal("seed: STORE_DRIVER=memory keeps nothing; use postgres or sqlite")
	}

	st, err := server.OpenStores(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	hasher := security.NewSyncHasher(
		security.NewHasher(cfg.BcryptCost).WithScheme(security.Scheme(cfg.PasswordScheme)),
	)
	tokens := security.NewTokenProvider(
		security.NewTokenCodec(cfg.Leeway()),
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	svc := identityservice.NewAuthService(st.Users, st.Identity, st.Sessions, hasher, tokens)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, in := range devAccounts {
		in.Password = devPassword
		res, err := svc.Register(ctx, in)
		switch {
		case errors.Is(err, identityservice.ErrEmailAlreadyRegistered), errors.Is(err, identityservice.ErrUsernameTaken):
			log.Printf("seed: %s already exists, skipping", in.Email)
		case err != nil:
			log.Fatalf("seed: register %s: %v", in.Email, err)
		default:
			log.Printf("seed: created %s (user %s)", in.Email, res.UserID)
		}
	}
	log.Printf("seed: done. Log in with username dev or member and password %s", devPassword)
}
