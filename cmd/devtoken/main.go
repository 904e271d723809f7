// Command devtoken signs an access token with the configured JWT secret.
// It is meant for local runs and load tests; production tokens come from
// the identity service.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erp/settlement/internal/infrastructure/auth"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run(os.Args[1:], config.Load, os.Stdout, os.Stderr))
}

func run(args []string, load func() (*config.Config, error), stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(stderr)
	companyFlag := fs.String("company", "", "Company ID the token is scoped to (required)")
	userFlag := fs.String("user", "", "User ID, random when empty")
	branchFlag := fs.String("branch", "", "Optional branch ID")
	username := fs.String("username", "devtoken", "Username claim")
	ttl := fs.Duration("ttl", 0, "Override token lifetime")
	verbose := fs.Bool("v", false, "Print expiry to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	companyID, err := uuid.Parse(*companyFlag)
	if err != nil {
		fmt.Fprintf(stderr, "devtoken: -company: %v\n", err)
		return 2
	}
	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			fmt.Fprintf(stderr, "devtoken: -user: %v\n", err)
			return 2
		}
	}
	var branchID *uuid.UUID
	if *branchFlag != "" {
		id, err := uuid.Parse(*branchFlag)
		if err != nil {
			fmt.Fprintf(stderr, "devtoken: -branch: %v\n", err)
			return 2
		}
		branchID = &id
	}

	cfg, err := load()
	if err != nil {
		fmt.Fprintf(stderr, "devtoken: loading config: %v\n", err)
		return 1
	}
	if *ttl > 0 {
		cfg.JWT.AccessTokenExpiration = *ttl
	}

	token, expires, err := auth.NewJWTService(cfg.JWT).GenerateAccessToken(auth.GenerateTokenInput{
		CompanyID: companyID,
		UserID:    userID,
		BranchID:  branchID,
		Username:  *username,
	})
	if err != nil {
		fmt.Fprintf(stderr, "devtoken: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	if *verbose {
		fmt.Fprintf(stderr, "user %s, expires %s\n", userID, expires.Format(time.RFC3339))
	}
	return 0
}
