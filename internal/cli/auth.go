package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vedran77/chatsync/internal/client"
)

var (
	loginEmail    string
	loginPassword string

	registerUsername    string
	registerDisplayName string
)

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringVar(&loginEmail, "email", "", "account email")
		cmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
		cmd.MarkFlagRequired("email")
		rootCmd.AddCommand(cmd)
	}
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "unique username")
	registerCmd.Flags().StringVar(&registerDisplayName, "display-name", "", "name shown to others")
	registerCmd.MarkFlagRequired("username")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrStdin(cmd)
		if err != nil {
			return err
		}
		c := client.New(cfg.Client.ServerURL)
		s, err := c.Login(cmd.Context(), loginEmail, password)
		if err != nil {
			return err
		}
		return storeSession(cmd, s)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFromFlagOrStdin(cmd)
		if err != nil {
			return err
		}
		displayName := registerDisplayName
		if displayName == "" {
			displayName = registerUsername
		}
		c := client.New(cfg.Client.ServerURL)
		s, err := c.Register(cmd.Context(), client.RegisterRequest{
			Email:       loginEmail,
			Username:    registerUsername,
			DisplayName: displayName,
			Password:    password,
		})
		if err != nil {
			return err
		}
		return storeSession(cmd, s)
	},
}

func storeSession(cmd *cobra.Command, s *client.Session) error {
	stored := &session{
		Server:      cfg.Client.ServerURL,
		UserID:      s.User.ID,
		Username:    s.User.Username,
		AccessToken: s.AccessToken,
	}
	if err := saveSession(cfg.Client.TokenFile, stored); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", s.User.Username, s.User.ID)
	return nil
}

func passwordFromFlagOrStdin(cmd *cobra.Command) (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
