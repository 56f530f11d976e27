// Command devtoken mints an access token for local testing.  User accounts
// live outside this service, so operators use it to call protected routes:
//
//	devtoken -user 7 -role CUSTOMER
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/theater-seat-reservation/internal/config"
	"github.com/iliyamo/theater-seat-reservation/internal/middleware"
	"github.com/iliyamo/theater-seat-reservation/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 0, "user id placed in the token subject")
	role := flag.String("role", middleware.RoleCustomer, "CUSTOMER, OWNER or ADMIN")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to ACCESS_TOKEN_TTL_MIN")
	asJSON := flag.Bool("json", false, "print token and expiry as JSON")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	r := strings.ToUpper(*role)
	switch r {
	case middleware.RoleCustomer, middleware.RoleOwner, middleware.RoleAdmin:
	default:
		log.Fatalf("unknown role %q", *role)
	}
	if *ttl <= 0 {
		mins := 60
		if cfg, err := config.Load(); err == nil {
			mins = cfg.AccessTTLMin
		}
		*ttl = time.Duration(mins) * time.Minute
	}

	tok, err := utils.NewAccessToken(secret, *userID, r, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(tok)
		return
	}
	fmt.Println(tok.Token)
}
