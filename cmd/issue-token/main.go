// Command issue-token mints a bearer token for local development and e2e runs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	flag.StringVar(&userID, "user", "", "User id (token subject)")
	flag.StringVar(&email, "email", "", "Optional email claim")
	flag.StringVar(&role, "role", "student", "Optional role claim")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	cfg := config.Load()
	if ttl <= 0 {
		ttl = cfg.JWTExpiry
	}

	if userID == "" {
		fmt.Fprint(os.Stderr, "Enter user id: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		userID = strings.TrimSpace(line)
		if userID == "" {
			fmt.Fprintln(os.Stderr, "Error: user id is required")
			os.Exit(1)
		}
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not set")
			os.Exit(1)
		}
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		secret = string(raw)
	}

	token, err := service.NewAuthService(secret, ttl).GenerateToken(userID, email, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
