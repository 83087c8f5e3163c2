package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	userrepo "bookshelf/internal/users/repository"
	userservice "bookshelf/internal/users/service"
	uservalidator "bookshelf/internal/users/validator"
	"bookshelf/pkg/model"
)

var errPasswordMismatch = errors.New("passwords do not match")

func newCreateUserCmd(e *env) *cobra.Command {
	var (
		input         model.RegisterInput
		role          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a staff or member account",
		Long: "Create an account with an explicit role. Public registration only ever " +
			"yields normal_user, so the first admin is created here.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q", role)
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}
			input.Password = password

			cfg := e.connect()
			users := userrepo.NewMongoUserRepository(cfg)
			sessions := userrepo.NewMongoSessionRepository(cfg)
			auth := userservice.NewAuthService(users, sessions, uservalidator.NewUserValidator(cfg.Log), cfg)

			user, err := auth.CreateUser(cmd.Context(), &input, r)
			if err != nil {
				return err
			}
			cmd.Printf("Created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Username, "username", "", "account username")
	cmd.Flags().StringVar(&input.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "normal_user, librarian or admin")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin instead of prompting")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

// readPassword reads one line from in when fromStdin is set, otherwise it
// prompts twice on the controlling terminal with echo disabled.
func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("empty password on stdin")
		}
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}

	first, err := promptHidden(fd, prompt, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := promptHidden(fd, prompt, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

func promptHidden(fd int, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
