// Package cmd is the crmctl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanpawarit/chative-crm/crm"
	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/tool"
	"github.com/tanpawarit/chative-crm/crm/undo"
	configx "github.com/tanpawarit/chative-crm/pkg/config"
)

// errResultFailed marks a command whose result was already printed.
var errResultFailed = errors.New("crm operation failed")

var rootCmd = &cobra.Command{
	Use:   "crmctl",
	Short: "Search and edit CRM records through the configured adapter",
	Long: `crmctl drives the CRM integration layer from a shell.

The backend is chosen by CRM_SYSTEM (twenty or zoho) and configured through
TWENTY_* or ZOHO_* variables. Creates are remembered per --user so that
"crmctl undo" can delete them again; use UNDO_BACKEND=upstash or postgres to
keep that context between invocations.

Examples:
  crmctl search "Tomas Braun"
  crmctl contact --first Max --last Mustermann --company "Expoya GmbH" --email max@expoya.com
  crmctl update Expoya --type company --set size=50 --set website=expoya.com
  crmctl undo`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile := viper.GetString("env"); envFile != "" {
			configx.UseEnvFile(envFile)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errResultFailed) {
			fmt.Fprintln(os.Stderr, contractx.MarkFailure, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "Path to a .env file")
	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
	rootCmd.PersistentFlags().String("system", "", "CRM system, overrides CRM_SYSTEM")
	viper.BindPFlag("system", rootCmd.PersistentFlags().Lookup("system"))
	rootCmd.PersistentFlags().StringP("user", "u", "cli", "User id the undo context is kept under")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	rootCmd.PersistentFlags().String("via", "", "Name appended as attribution to task bodies and note content")
	viper.BindPFlag("via", rootCmd.PersistentFlags().Lookup("via"))
}

func settings() (crm.Settings, error) {
	s, err := configx.New[crm.Settings]("")
	if err != nil {
		return crm.Settings{}, err
	}
	if system := strings.TrimSpace(viper.GetString("system")); system != "" {
		s.System = system
	}
	return *s, nil
}

// openToolkit builds the adapter and undo store for one invocation. The
// returned func releases the store.
func openToolkit(ctx context.Context) (*tool.Toolkit, func(), error) {
	s, err := settings()
	if err != nil {
		return nil, nil, err
	}
	adapter, err := crm.NewAdapter(s)
	if err != nil {
		return nil, nil, err
	}

	undoCfg, err := configx.New[undo.Config]("UNDO")
	if err != nil {
		return nil, nil, err
	}
	var upstash undo.UpstashConfig
	if strings.EqualFold(strings.TrimSpace(undoCfg.Backend), undo.BackendUpstash) {
		up, err := configx.New[undo.UpstashConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, nil, err
		}
		upstash = *up
	}
	store, err := undo.Open(ctx, *undoCfg, upstash)
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("close undo store")
			}
		}
	}
	kit := tool.NewToolkit(adapter, store, viper.GetString("user"), tool.WithAttribution(viper.GetString("via")))
	return kit, release, nil
}

// runWithToolkit wraps a toolkit call into a cobra RunE.
func runWithToolkit(fn func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		kit, release, err := openToolkit(ctx)
		if err != nil {
			return err
		}
		defer release()
		return printResult(cmd.OutOrStdout(), fn(ctx, kit, args))
	}
}

func printResult(w io.Writer, res contractx.Result) error {
	fmt.Fprintln(w, res.Text())
	if res.Outcome.Failed() {
		return errResultFailed
	}
	return nil
}
