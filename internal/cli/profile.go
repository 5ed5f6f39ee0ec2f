package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/form"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

var profileCmd = routed(&cobra.Command{
	Use:   "profile",
	Short: "Show and edit your profile",
	RunE:  runProfileShow,
}, guard.Profile)

var profileShowCmd = routed(&cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE:  runProfileShow,
}, guard.Profile)

var profileUpdateCmd = routed(&cobra.Command{
	Use:   "update",
	Short: "Change username or email",
	RunE:  runProfileUpdate,
}, guard.Profile)

var profilePasswordCmd = routed(&cobra.Command{
	Use:   "password",
	Short: "Change your password",
	RunE:  runProfilePassword,
}, guard.Profile)

var pictureCmd = &cobra.Command{
	Use:   "picture",
	Short: "Manage your profile picture",
}

var pictureSetCmd = routed(&cobra.Command{
	Use:   "set [file]",
	Short: "Upload a profile picture",
	Args:  cobra.ExactArgs(1),
	RunE:  runPictureSet,
}, guard.Profile)

var pictureRemoveCmd = routed(&cobra.Command{
	Use:   "remove",
	Short: "Remove your profile picture",
	RunE:  runPictureRemove,
}, guard.Profile)

var (
	profileUsername string
	profileEmail    string
)

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUpdateCmd)
	profileCmd.AddCommand(profilePasswordCmd)
	profileCmd.AddCommand(pictureCmd)
	pictureCmd.AddCommand(pictureSetCmd)
	pictureCmd.AddCommand(pictureRemoveCmd)

	profileUpdateCmd.Flags().StringVarP(&profileUsername, "username", "u", "", "New username")
	profileUpdateCmd.Flags().StringVarP(&profileEmail, "email", "e", "", "New email address")
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := sess.client.Auth.Me(cmd.Context())
	if err != nil {
		return err
	}

	var roles []string
	if p.IsAdmin {
		roles = append(roles, model.RoleAdmin)
	}
	if p.IsLearner {
		roles = append(roles, model.RoleLearner)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n👤 %s\n", headerStyle.Render(p.Username))
	fmt.Fprintf(out, "   Email:   %s\n", p.Email)
	fmt.Fprintf(out, "   Roles:   %s\n", rolesLabel(roles))
	if p.ProfilePicture != nil && *p.ProfilePicture != "" {
		fmt.Fprintf(out, "   Picture: %s\n", *p.ProfilePicture)
	}
	fmt.Fprintln(out)
	return nil
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("username") && !cmd.Flags().Changed("email") {
		return fmt.Errorf("nothing to update, pass --username or --email")
	}
	ctx := cmd.Context()

	current, err := sess.client.Auth.Me(ctx)
	if err != nil {
		return err
	}
	username, email := current.Username, current.Email
	if cmd.Flags().Changed("username") {
		username = profileUsername
	}
	if cmd.Flags().Changed("email") {
		email = profileEmail
	}

	values := form.Values{"username": username, "email": email}
	if errs := form.Profile().Validate(values); !errs.Valid() {
		return invalid(cmd, errs)
	}

	p, err := sess.client.Auth.UpdateProfile(ctx, username, email)
	if err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Profile updated: %s <%s>", p.Username, p.Email)
	return nil
}

func runProfilePassword(cmd *cobra.Command, args []string) error {
	oldPassword, err := promptPassword(cmd, "Current password")
	if err != nil {
		return err
	}
	newPassword, err := promptPassword(cmd, "New password")
	if err != nil {
		return err
	}
	confirmPassword, err := promptPassword(cmd, "Confirm new password")
	if err != nil {
		return err
	}

	values := form.Values{
		"old_password":     oldPassword,
		"new_password":     newPassword,
		"confirm_password": confirmPassword,
	}
	if errs := form.Password().Validate(values); !errs.Valid() {
		return invalid(cmd, errs)
	}

	if err := sess.client.Auth.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Password changed successfully")
	return nil
}

func runPictureSet(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open picture: %w", err)
	}
	defer f.Close()

	p, err := sess.client.Auth.UploadProfilePicture(cmd.Context(), filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	msg := "Profile picture updated"
	if p.ProfilePicture != nil {
		msg += ": " + *p.ProfilePicture
	}
	sess.notifier.Notify(notify.New(notify.Success, msg))
	return nil
}

func runPictureRemove(cmd *cobra.Command, args []string) error {
	if err := sess.client.Auth.RemoveProfilePicture(cmd.Context()); err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Profile picture removed")
	return nil
}
