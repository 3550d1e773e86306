// ABOUTME: Operator CLI for the hub: inspect users and activity, clear sessions
// ABOUTME: Works directly against the configured SQLite store

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/constructhub/hub/internal/config"
	"github.com/constructhub/hub/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "users":
		err = cmdUsers(args)
	case "activity":
		err = cmdActivity(args)
	case "sessions":
		err = cmdSessions(args)
	case "hash":
		err = cmdHash()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: hub-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  users [limit]       List principals")
	fmt.Println("  activity [limit]    Show the activity log")
	fmt.Println("  sessions clear      Clear all admin sessions")
	fmt.Println("  hash                Hash a password for admin.password_hash")
}

// getConfigPath mirrors hubd's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("HUB_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hub.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "constructhub", "hub.yaml")
}

func openStore() (*store.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return store.NewSQLiteStore(cfg.Database.Path)
}

func parseLimit(args []string) int {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0
	}
	return n
}

func cmdUsers(args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	principals, err := st.ListPrincipals(context.Background(), parseLimit(args))
	if err != nil {
		return fmt.Errorf("listing principals: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY KEY\tUSERNAME\tEMAIL\tROLE\tVERIFIED\tSESSION\tCREATED")
	for _, p := range principals {
		session := "-"
		if p.SessionToken != nil {
			session = "live until " + p.SessionExpiry.Local().Format("15:04:05")
		}
		role := p.Role
		if p.IsAdmin() {
			role = color.YellowString(role)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			p.IdentityKey, p.Username, p.Email, role, p.Verified, session,
			p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdActivity(args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListActivity(context.Background(), store.ActivityFilter{Limit: parseLimit(args)})
	if err != nil {
		return fmt.Errorf("listing activity: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tDETAIL\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.ActorEmail, e.Action, e.Detail, e.SourceAddr)
	}
	return w.Flush()
}

func cmdSessions(args []string) error {
	if len(args) == 0 || args[0] != "clear" {
		return fmt.Errorf("usage: hub-admin sessions clear")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := st.ClearAllSessions(context.Background())
	if err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ cleared %d session(s)\n", count)
	return nil
}

// cmdHash reads a password without echo and prints its bcrypt hash, ready to
// paste into admin.password_hash.
func cmdHash() error {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	fmt.Println(string(hash))
	gray := color.New(color.FgHiBlack)
	gray.Printf("(cost %d, %s)\n", bcrypt.DefaultCost, time.Since(start).Round(time.Millisecond))
	return nil
}
