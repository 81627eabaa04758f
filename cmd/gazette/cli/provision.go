package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/users"
)

// ProvisionPasswordEnv names the variable the provision command reads the
// initial password from, keeping it out of shell history.
const ProvisionPasswordEnv = "GAZETTE_PROVISION_PASSWORD"

// Provisioner is satisfied by *users.Service.
type Provisioner interface {
	Bootstrap(ctx context.Context, in users.ProvisionInput) (users.User, error)
}

// ParseProvisionArgs reads `provision -email x -name y -role ROLE`.
func ParseProvisionArgs(args []string, getenv func(string) string, stderr io.Writer) (users.ProvisionInput, error) {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name (defaults to the email)")
	role := fs.String("role", string(accounts.RoleSuperAdmin), "account role")
	if err := fs.Parse(args); err != nil {
		return users.ProvisionInput{}, err
	}
	if *email == "" {
		return users.ProvisionInput{}, errors.New("provision: -email is required")
	}
	parsed, err := accounts.ParseRole(*role)
	if err != nil {
		return users.ProvisionInput{}, fmt.Errorf("provision: %w", err)
	}
	password := getenv(ProvisionPasswordEnv)
	if password == "" {
		return users.ProvisionInput{}, fmt.Errorf("provision: %s must be set", ProvisionPasswordEnv)
	}
	if *name == "" {
		*name = *email
	}
	return users.ProvisionInput{Email: *email, Name: *name, Password: password, Role: parsed}, nil
}

// ProvisionCommand creates a verified account and reports the result. It
// returns the process exit code.
func ProvisionCommand(ctx context.Context, p Provisioner, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	in, err := ParseProvisionArgs(args, getenv, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	user, err := p.Bootstrap(ctx, in)
	if err != nil {
		fmt.Fprintf(stderr, "provision: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "provisioned %s (id=%d role=%s)\n", user.Email, user.ID, user.Role)
	return 0
}
