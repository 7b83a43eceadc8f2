package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskboard/internal/client"
)

var Version = "dev"

type globalFlags struct {
	server   string
	token    string
	email    string
	password string
}

func main() {
	var g globalFlags
	rootCmd := &cobra.Command{
		Use:           "boardwatch",
		Short:         "Follow and edit the shared task board from a terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.server, "server", "s", envOr("BOARD_SERVER", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("BOARD_TOKEN"), "bearer token (skips login)")
	rootCmd.PersistentFlags().StringVarP(&g.email, "email", "e", os.Getenv("BOARD_EMAIL"), "login email")
	rootCmd.PersistentFlags().StringVar(&g.password, "password", os.Getenv("BOARD_PASSWORD"), "login password")

	rootCmd.AddCommand(watchCmd(&g))
	rootCmd.AddCommand(listCmd(&g))
	rootCmd.AddCommand(addCmd(&g))
	rootCmd.AddCommand(moveCmd(&g))
	rootCmd.AddCommand(assignCmd(&g))
	rootCmd.AddCommand(removeCmd(&g))
	rootCmd.AddCommand(registerCmd(&g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect returns a client holding a usable token.
func (g *globalFlags) connect(ctx context.Context) (*client.Client, error) {
	c, err := client.New(g.server, nil)
	if err != nil {
		return nil, err
	}
	if g.token != "" {
		c.SetToken(g.token)
		return c, nil
	}
	if g.email == "" || g.password == "" {
		return nil, errors.New("either --token or --email and --password are required")
	}
	if _, err := c.Login(ctx, g.email, g.password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
