// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rule-harvester/internal/secrets"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored API key",
	Long: `Key saves, shows, or clears the API key used for model requests. The key is
stored in the credentials directory with owner-only permissions.

RULE_HARVESTER_API_KEY (from the environment or a .env file) takes
precedence over the stored key.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Save the API key (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) == 1 {
			value = args[0]
		} else {
			fmt.Fprint(os.Stderr, "API key: ")
			line, err := readKey(cmd.InOrStdin())
			if err != nil {
				return err
			}
			value = line
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("no key given")
		}

		keys := credentials()
		if !keys.Store.Save(value) {
			return fmt.Errorf("could not save the API key to %s", keys.Store.Path())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "API key saved to %s\n", keys.Store.Path())
		if keys.Override != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Note: RULE_HARVESTER_API_KEY is set and takes precedence.")
		}
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the API key in use (masked unless --reveal)",
	RunE: func(cmd *cobra.Command, args []string) error {
		reveal, _ := cmd.Flags().GetBool("reveal")
		keys := credentials()
		value := keys.Get()
		if value == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No API key configured.")
			return nil
		}
		if !reveal {
			value = secrets.Mask(value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", value, keys.Source())
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := credentials()
		if !keys.Store.Clear() {
			return fmt.Errorf("could not clear the API key at %s", keys.Store.Path())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key cleared.")
		return nil
	},
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	keyShowCmd.Flags().Bool("reveal", false, "print the key unmasked")

	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyClearCmd)

	rootCmd.AddCommand(keyCmd)
}
