// Command relaytoken mints HS256 tokens accepted by the relay auth gate.
//
//	JWT_SECRET=... relaytoken -sub user-1 -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/relay/pkg/jwt"
)

func main() {
	var (
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret, defaults to $JWT_SECRET")
		sub    = flag.String("sub", "", "subject claim")
		issuer = flag.String("iss", "relay", "issuer claim")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime, 0 for no expiry")
	)
	flag.Parse()

	token, err := mint(*secret, *sub, *issuer, *ttl, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "relaytoken:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(secret, sub, issuer string, ttl time.Duration, now time.Time) (string, error) {
	svc, err := jwt.NewFromString(secret)
	if err != nil {
		return "", err
	}

	claims := jwt.StandardClaims{
		ID:       uuid.NewString(),
		Subject:  sub,
		Issuer:   issuer,
		IssuedAt: jwt.NumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NumericDate(now.Add(ttl))
	}

	return svc.Generate(claims)
}
