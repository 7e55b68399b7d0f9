// cmd/genhash prints a bcrypt hash for the given password, using BCRYPT_COST.
// Uso: go run ./cmd/genhash <password>
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/kerm1977/plantilla1/internal/config"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "uso: genhash <password>")
		os.Exit(2)
	}
	cost := bcrypt.DefaultCost
	if cfg, err := config.Load(); err == nil && cfg.BcryptCost >= bcrypt.MinCost {
		cost = cfg.BcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(h))
}
