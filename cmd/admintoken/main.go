// Command admintoken mints admin credentials for the contact API.
//
// Without flags it prints an HS256 admin JWT signed with SECRET_KEY. With
// -hash it prints the bcrypt hash of a static token for ADMIN_TOKEN_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"contactgate/internal/util"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("admintoken: ")

	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var (
		subject = flag.String("sub", "admin", "token subject")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
		secret  = flag.String("secret", os.Getenv("SECRET_KEY"), "signing secret, defaults to SECRET_KEY")
		hash    = flag.String("hash", "", "print the bcrypt hash of this static token and exit")
	)
	flag.Parse()

	if *hash != "" {
		out, err := bcrypt.GenerateFromPassword([]byte(*hash), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash token: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	if len(*secret) < 32 {
		log.Fatal("SECRET_KEY must be set and at least 32 characters")
	}
	token, err := util.GenerateAdminToken(*secret, *subject, *ttl)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Println(token)
}
