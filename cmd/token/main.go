package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hackclub/mediadrop/internal/auth"
	"github.com/hackclub/mediadrop/internal/config"
	"github.com/hackclub/mediadrop/internal/logging"
)

func main() {
	subject := flag.String("sub", "", "token subject (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	groups := flag.String("groups", "", "comma separated groups the token may use (empty allows all)")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if *subject == "" {
		logger.Fatal().Msg("-sub is required")
	}
	if len(cfg.JWTSecret) < 32 {
		logger.Fatal().Msg("AUTH_JWT_SECRET must be set to at least 32 characters")
	}

	var allowed []string
	for _, g := range strings.Split(*groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			allowed = append(allowed, g)
		}
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret).Issue(*subject, allowed, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Fprintln(os.Stdout, token)
}
