package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trustcore/internal/security"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Score a password and print its bcrypt hash",
	Long: `Checks the password against the strength policy and prints its bcrypt hash
using BCRYPT_COST. Without an argument the password is read from stdin so it
stays out of shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		s := security.ValidatePasswordStrength(pw)
		fmt.Fprintf(out, "score: %d\n", s.Score)
		for _, issue := range s.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
		hash, err := security.NewHasher(cfg.BcryptCost).HashPassword(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hash)
		return nil
	},
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
