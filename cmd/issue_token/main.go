package main

import (
	"flag"
	"fmt"
	"os"

	"driverledger/config"
	"driverledger/pkg/auth"
	"driverledger/pkg/logger"
	"driverledger/pkg/models"
)

// issue_token prints a Bearer token for a development identity:
//
//	go run ./cmd/issue_token -identity owner-a
func main() {
	identity := flag.String("identity", "", "identity to put in the token subject")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	token, err := auth.NewTokenService(cfg.JWTSigningKey, cfg.ServiceName, cfg.JWTTTL).Issue(models.Identity(*identity))
	if err != nil {
		log.Error("failed to issue token", logger.String("identity", *identity), logger.Error(err))
		os.Exit(1)
	}
	fmt.Println(token)
}
