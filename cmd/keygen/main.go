package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-query-gateway/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/keygen <user-id> [api-key]")
		fmt.Println("Generates an API key (unless one is given) and the config.yaml entry binding it to the user")
		os.Exit(1)
	}

	userID := os.Args[1]
	apiKey := ""
	if len(os.Args) > 2 {
		apiKey = os.Args[2]
	} else {
		apiKey = "qp-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  api_keys:\n")
	fmt.Printf("    - key_hash: \"%s\"\n", keyHash)
	fmt.Printf("      user_id: \"%s\"\n", userID)
	fmt.Printf("      description: \"Generated key\"\n")
}
