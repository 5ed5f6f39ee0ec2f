package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the settings stored in ~/.slotflow/config.yaml.

Examples:
  slotflow config                                  # Show settings
  slotflow config set api_url https://slotflow.example.com/api
  slotflow config set refresh_interval "@every 1m"
  slotflow config set confirm_destructive false`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

// configKeys maps a key to its setter
var configKeys = map[string]func(c *config.Config, v string) error{
	"api_url": func(c *config.Config, v string) error {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return fmt.Errorf("api_url must start with http:// or https://")
		}
		c.APIURL = strings.TrimRight(v, "/")
		return nil
	},
	"request_timeout": func(c *config.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("request_timeout must be a positive duration such as 30s")
		}
		c.RequestTimeout = d
		return nil
	},
	"refresh_interval": func(c *config.Config, v string) error {
		if _, err := cron.ParseStandard(v); err != nil {
			return fmt.Errorf("refresh_interval: %w", err)
		}
		c.RefreshInterval = v
		return nil
	},
	"confirm_destructive": func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("confirm_destructive must be true or false")
		}
		c.ConfirmDestructive = b
		return nil
	},
	"log_level": func(c *config.Config, v string) error {
		c.LogLevel = logger.ParseLevel(v).String()
		return nil
	},
	"log_file": func(c *config.Config, v string) error {
		c.LogFile = v
		return nil
	},
	"log_console": func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("log_console must be true or false")
		}
		c.LogConsole = b
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c := sess.cfg
	out := cmd.OutOrStdout()

	dir, _ := config.Dir()
	fmt.Fprintf(out, "⚙️  Settings (%s)\n", dir)
	fmt.Fprintf(out, "   api_url:             %s\n", c.APIURL)
	fmt.Fprintf(out, "   request_timeout:     %s\n", c.RequestTimeout)
	fmt.Fprintf(out, "   refresh_interval:    %s\n", c.RefreshInterval)
	fmt.Fprintf(out, "   confirm_destructive: %t\n", c.ConfirmDestructive)
	fmt.Fprintf(out, "   log_level:           %s\n", c.LogLevel)
	fmt.Fprintf(out, "   log_file:            %s\n", c.LogFile)
	fmt.Fprintf(out, "   log_console:         %t\n", c.LogConsole)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := strings.ToLower(args[0]), strings.TrimSpace(args[1])
	set, ok := configKeys[key]
	if !ok {
		keys := make([]string, 0, len(configKeys))
		for k := range configKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown setting %q, expected one of: %s", key, strings.Join(keys, ", "))
	}

	if err := set(sess.cfg, value); err != nil {
		return err
	}
	if err := sess.cfg.Save(); err != nil {
		return err
	}

	logger.Info("Setting changed", logger.F("key", key))
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s updated\n", key)
	return nil
}
