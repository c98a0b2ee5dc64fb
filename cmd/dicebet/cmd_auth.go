// cmd/dicebet/cmd_auth.go
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jason-s-yu/dicebet/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword(cmd, "Confirm password: ")
		if err != nil {
			return err
		}
		if err := cli.api.Register(cmd.Context(), args[0], pw, confirm); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registered. Run \"dicebet login\" to continue.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and keep the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		username := strings.TrimSpace(args[0])
		token, err := cli.api.Login(cmd.Context(), username, pw)
		if err != nil {
			return err
		}
		if err := cli.store.Save(cmd.Context(), session.Session{Token: token, Username: username}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.store.Load(cmd.Context())
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		if err != nil {
			return err
		}
		// The local session goes regardless of what the server says.
		if err := cli.api.Logout(cmd.Context(), s.Token); err != nil {
			cli.logger.Warnf("Server logout failed: %v", err)
		}
		if err := cli.store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd)
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

// lineReaders keeps one buffered reader per input so consecutive prompts on a
// pipe do not lose buffered lines.
var lineReaders = map[io.Reader]*bufio.Reader{}

func readLine(r io.Reader) (string, error) {
	br, ok := lineReaders[r]
	if !ok {
		br = bufio.NewReader(r)
		lineReaders[r] = br
	}
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
