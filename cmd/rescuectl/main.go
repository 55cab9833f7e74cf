// Command rescuectl is the volunteer client: it browses and acts on rescue
// tasks, queueing claim, complete and cancel actions while offline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rescuehub/errs"
	"rescuehub/logger"
)

var Version = "dev"

type ctxKey struct{}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var cfgPath string

	root := &cobra.Command{
		Use:           "rescuectl",
		Short:         "RescueHub volunteer client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgPath)
			if err != nil {
				return err
			}
			// stdout carries command output
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel("warn")
			if _, ok := os.LookupEnv("DEBUG"); ok {
				logger.SetLevel("debug")
			}
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, cfg))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default ~/.rescuehub/config.yaml)")
	pf.String("server", "", "server base URL")
	pf.String("token", "", "bearer token")
	pf.Uint("user", 0, "your user id")
	pf.String("store", "", "offline store: file or sqlite")
	pf.StringP("output", "o", "table", "output format: table, json or yaml")
	bindFlag(v, "server_url", pf.Lookup("server"))
	bindFlag(v, "token", pf.Lookup("token"))
	bindFlag(v, "user_id", pf.Lookup("user"))
	bindFlag(v, "store", pf.Lookup("store"))

	root.AddCommand(tasksCmd())
	root.AddCommand(claimCmd())
	root.AddCommand(taskCmd())
	root.AddCommand(queueCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(tokenCmd())
	return root
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func configFrom(cmd *cobra.Command) *Config {
	cfg, _ := cmd.Context().Value(ctxKey{}).(*Config)
	return cfg
}

// withApp opens the offline layer for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(configFrom(cmd))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func describe(err error) string {
	if errs.KindOf(err) == errs.Internal {
		return err.Error()
	}
	return errs.Message(err)
}

func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.Validation:
		return 2
	case errs.Network:
		return 3
	case errs.Permission, errs.NotFound, errs.State, errs.Capacity, errs.Duplicate:
		return 4
	}
	return 1
}
