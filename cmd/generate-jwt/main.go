package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dex-backend/internal/services"
	"dex-backend/internal/utils"
)

func main() {
	var (
		address = flag.String("address", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "checksum address to issue the token for")
		secret  = flag.String("secret", os.Getenv("JWT_SECRET"), "session signing secret (default $JWT_SECRET)")
		ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("No secret: pass -secret or set JWT_SECRET")
	}
	if _, err := utils.ParseChecksumAddress("address", *address); err != nil {
		log.Fatalf("Invalid address %s: %v", *address, err)
	}

	token, expiresAt, err := services.NewSessionManager(*secret, *ttl).Issue(*address)
	if err != nil {
		log.Fatalf("Error generating token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("Session Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Printf("  Address: %s\n", *address)
	fmt.Printf("  Expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8000/bot\n", token)
}
