package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/form"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Log in to, log out of, or create an account on the SlotFlow API.`,
}

var loginCmd = routed(&cobra.Command{
	Use:   "login",
	Short: "Log in with a username or email",
	RunE:  runLogin,
}, guard.Login)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	RunE:  runLogout,
}

var registerCmd = routed(&cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	Long: `Create a new account. Missing values are prompted for.

Examples:
  slotflow auth register
  slotflow auth register --username alice --email alice@example.com --role learner`,
	RunE: runRegister,
}, guard.Register)

var whoamiCmd = routed(&cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}, guard.Profile)

var (
	loginUsername string
	regUsername   string
	regEmail      string
	regRole       string
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username or email")

	registerCmd.Flags().StringVarP(&regUsername, "username", "u", "", "Username")
	registerCmd.Flags().StringVarP(&regEmail, "email", "e", "", "Email address")
	registerCmd.Flags().StringVarP(&regRole, "role", "r", model.RoleLearner, "Account role (learner, admin)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	var err error
	username := loginUsername
	if username == "" {
		if username, err = prompt(cmd, "Username or email"); err != nil {
			return err
		}
	}
	password, err := promptPassword(cmd, "Password")
	if err != nil {
		return err
	}

	values := form.Values{"username": username, "password": password}
	if errs := form.Login().Validate(values); !errs.Valid() {
		return invalid(cmd, errs)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "🔄 Logging in...")
	if err := sess.client.Auth.Login(cmd.Context(), username, password); err != nil {
		return err
	}

	identity, ok := sess.store.CurrentUser()
	if !ok {
		return fmt.Errorf("server returned an unreadable credential")
	}
	notify.Successf(sess.notifier, "Logged in as %s (%s)", identity.Username, rolesLabel(identity.Roles()))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if !sess.signedIn() {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}
	if err := sess.client.Auth.Logout(); err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Logged out")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	var err error
	username, email := regUsername, regEmail
	if username == "" {
		if username, err = prompt(cmd, "Username"); err != nil {
			return err
		}
	}
	if email == "" {
		if email, err = prompt(cmd, "Email"); err != nil {
			return err
		}
	}
	password, err := promptPassword(cmd, "Password")
	if err != nil {
		return err
	}
	password2, err := promptPassword(cmd, "Confirm password")
	if err != nil {
		return err
	}

	in := model.RegisterInput{
		Username:  username,
		Email:     email,
		Password:  password,
		Password2: password2,
		Role:      strings.ToLower(regRole),
	}
	values := form.Values{
		"username":  in.Username,
		"email":     in.Email,
		"password":  in.Password,
		"password2": in.Password2,
		"role":      in.Role,
	}
	if errs := form.Register().Validate(values); !errs.Valid() {
		return invalid(cmd, errs)
	}

	profile, err := sess.client.Auth.Register(cmd.Context(), in)
	if err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Registration successful! Please log in as %s.", profile.Username)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	identity, _ := sess.store.CurrentUser()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "👤 %s <%s>\n", identity.Username, identity.Email)
	fmt.Fprintf(out, "   Roles: %s\n", rolesLabel(identity.Roles()))
	fmt.Fprintf(out, "   API:   %s\n", sess.client.BaseURL())
	return nil
}

func rolesLabel(roles []string) string {
	if len(roles) == 0 {
		return "no role"
	}
	return strings.Join(roles, ", ")
}
