package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tianchangNorth/githeart/internal/credential"
)

var (
	tokenValue    string
	tokenUsername string
	tokenFile     string
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored access tokens",
	}

	setCmd := &cobra.Command{
		Use:   "set <domain>",
		Short: "Store an access token for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenSet(args[0])
		},
	}
	setCmd.Flags().StringVarP(&tokenValue, "token", "t", "", "Token value")
	setCmd.Flags().StringVarP(&tokenUsername, "username", "u", "", "Username to pair with the token")
	setCmd.Flags().StringVarP(&tokenFile, "token-file", "f", "", "File containing the token value")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenList()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <domain>",
		Short: "Delete the stored token for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenDelete(args[0])
		},
	}

	cmd.AddCommand(setCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(deleteCmd)
	return cmd
}

func runTokenSet(domain string) error {
	value := tokenValue
	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return fmt.Errorf("failed to read token file: %w", err)
		}
		value = strings.TrimSpace(string(data))
	}
	if value == "" {
		return fmt.Errorf("a token value is required (--token or --token-file)")
	}

	cfg, err := credential.NewTokenConfig(domain, value, tokenUsername)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.resolver.StoreToken(context.Background(), cfg); err != nil {
		return err
	}
	fmt.Printf("stored token for %s\n", cfg.Domain)
	return nil
}

func runTokenList() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	tokens, err := a.store.List(context.Background())
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Println("no tokens stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tUSERNAME\tCREATED\tLAST USED")
	for _, tc := range tokens {
		lastUsed := "never"
		if tc.LastUsed != nil {
			lastUsed = tc.LastUsed.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tc.Domain, tc.Username, tc.CreatedAt.Format(time.RFC3339), lastUsed)
	}
	return w.Flush()
}

func runTokenDelete(domain string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Delete(context.Background(), domain); err != nil {
		return err
	}
	fmt.Printf("deleted token for %s\n", strings.ToLower(domain))
	return nil
}
