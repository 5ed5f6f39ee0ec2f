package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/slotflow/internal/form"
)

// prompt reads one line. At end of input it returns what was read so far.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	line, err := sess.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword hides the input when stdin is a terminal
func promptPassword(cmd *cobra.Command, label string) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ", label)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		return string(b), err
	}

	line, err := sess.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	answer, err := prompt(cmd, question+" [y/N]")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// invalid prints field errors and returns them as one error
func invalid(cmd *cobra.Command, errs form.Errors) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "❌ Please fix the following:")
	for _, name := range names {
		fmt.Fprintf(out, "   • %s: %s\n", name, errs[name])
	}
	return errs.Err()
}
