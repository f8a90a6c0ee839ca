package main

import (
	"fmt"
	"os"
	"time"

	"github.com/driveguard/drowsy-server-go/internal/auth"
	"github.com/driveguard/drowsy-server-go/internal/model"
)

// Mints a development access token for exercising authenticated endpoints
// without a Google login round trip.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/mint-token.go <user-id> <email>\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET must be set\n")
		os.Exit(1)
	}

	token, err := auth.GenerateToken(os.Args[1], os.Args[2], model.RoleUser, []byte(secret), 7*24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
