// Command devtoken mints an access token signed with the configured key, for
// calling the proof API locally.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	jwttoken "geoprivacy/internal/jwt_token"
	"geoprivacy/internal/platform/config"
	"geoprivacy/internal/platform/logger"
	id "geoprivacy/pkg/domain"
)

func main() {
	user := flag.String("user", "", "user ID (UUID); a random one is used when empty")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	log := logger.New(slog.LevelWarn)
	config.LoadDotEnv(log)
	cfg := config.FromEnv()

	userID := id.NewUserID()
	if *user != "" {
		parsed, err := id.ParseUserID(*user)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(2)
		}
		userID = parsed
	}

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := svc.GenerateAccessToken(userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user_id: %s\nexpires_in: %s\n", userID, ttl.String())
	fmt.Println(token)
}
