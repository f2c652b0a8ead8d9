package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/invites"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	switch args[0] {
	case "issue-invite":
		return runIssueInvite(args[1:])
	case "reset-password":
		return runResetPassword(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  viewdeck admin issue-invite --email user@example.com [--name <name>] [--type viewer|admin] [--resource-type <kind>] [--resource-id <uuid>] [--ttl-days <n>] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  viewdeck admin reset-password --email user@example.com [--password <new>] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - If --password is omitted, a random password is generated and printed.")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to VD_DB_DSN.")
}

func runIssueInvite(args []string) int {
	fs := flag.NewFlagSet("issue-invite", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email, name, inviteType, resourceType, resourceID, dbDSN string
	var ttlDays int

	fs.StringVar(&email, "email", "", "Recipient email")
	fs.StringVar(&name, "name", "", "Recipient display name")
	fs.StringVar(&inviteType, "type", "viewer", "Invite type (viewer or admin)")
	fs.StringVar(&resourceType, "resource-type", "", "Scoped resource kind (product, video, playlist)")
	fs.StringVar(&resourceID, "resource-id", "", "Scoped resource UUID")
	fs.IntVar(&ttlDays, "ttl-days", 7, "Days until the invite expires")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to VD_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(email) == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	dsn, ok := resolveDSN(dbDSN)
	if !ok {
		return 2
	}

	params := invites.IssueParams{
		Email:      email,
		Name:       name,
		InviteType: identity.Role(strings.ToLower(strings.TrimSpace(inviteType))),
	}
	if resourceType != "" {
		rt := invites.ResourceType(strings.ToLower(strings.TrimSpace(resourceType)))
		params.ResourceType = &rt
	}
	if resourceID != "" {
		id, err := uuid.Parse(resourceID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "--resource-id must be a UUID")
			return 2
		}
		params.ResourceID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	invite, token, err := invites.NewService(pool, ttlDays).Issue(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue invite: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "Invite created for %s (expires %s)\n", invite.Email, invite.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(os.Stdout, token)

	return 0
}

func runResetPassword(args []string) int {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var email string
	var password string
	var dbDSN string

	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&password, "password", "", "New password (if empty, generates one)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to VD_DB_DSN)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	dsn, ok := resolveDSN(dbDSN)
	if !ok {
		return 2
	}

	generated := false
	if password == "" {
		pw, err := generatePassword(24)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
			return 1
		}
		password = pw
		generated = true
	}

	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "Password must be at least 8 characters")
		return 2
	}

	passwordHash, err := identity.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	tag, err := pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = $1`, strings.ToLower(email), passwordHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update password: %v\n", err)
		return 1
	}
	if tag.RowsAffected() == 0 {
		fmt.Fprintf(os.Stderr, "No user found with email %q\n", email)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Password updated.")
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}

	return 0
}

func resolveDSN(flagValue string) (string, bool) {
	dsn := strings.TrimSpace(flagValue)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("VD_DB_DSN"))
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "--db-dsn is required (or set VD_DB_DSN)")
		return "", false
	}
	return dsn, true
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
