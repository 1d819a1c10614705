package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ivankudzin/tgapp/chatguard/internal/config"
	authsvc "github.com/ivankudzin/tgapp/chatguard/internal/services/auth"
)

// token mints an admin API access token for one tenant.
func main() {
	tenantID := flag.Int64("tenant", 0, "tenant id")
	subject := flag.String("subject", "", "operator name")
	flag.Parse()

	if *tenantID <= 0 || strings.TrimSpace(*subject) == "" {
		log.Fatal("use -tenant and -subject to describe the operator")
	}

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	token, expiresAt, err := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL).GenerateAccessToken(*tenantID, *subject)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}
