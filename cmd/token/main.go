// Команда token выпускает JWT для аккаунта: локальная отладка и интеграционные тесты.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	security "github.com/linemk/recipe-exchange/internal/jwt-new"
)

func main() {
	var (
		accountID int64
		ttl       time.Duration
	)
	flag.Int64Var(&accountID, "account", 0, "account id to put into the sub claim")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	if accountID <= 0 {
		log.Fatal("-account must be a positive account id")
	}

	token, err := security.NewToken(accountID, os.Getenv("JWT_SECRET"), ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
