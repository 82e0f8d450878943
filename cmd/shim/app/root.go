// Package app builds the shim CLI: a single daemon command whose
// flags are bound through viper so they can also be set via SHIM_*
// environment variables or a --config YAML file.
package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medo6/shim/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// NewRootCmd builds the shim root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "shim",
		Short:             "shim is an HTTP gateway for a stateful array-database client",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Println(version)
				return nil
			}
			return runServe(cmd)
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "print version and exit")

	registerServeFlags(rootCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.SetEnvPrefix("SHIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	return rootCmd
}

func registerServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolP("foreground", "f", false, "keep the process in the foreground instead of daemonizing")
	flags.BoolP("ssl", "a", false, "treat the last -p port as the SSL port and drop it when no certs directory exists under the docroot's parent (every listener serves plain HTTP)")
	flags.StringP("ports", "p", "8080", "comma-separated list of HTTP(S) listen ports")
	flags.StringP("docroot", "r", "/var/www/shim", "document root for static file service")
	flags.StringP("host", "n", "127.0.0.1", "backend host")
	flags.IntP("port", "s", 1239, "backend port")
	flags.StringP("tmpdir", "t", "/tmp", "temp directory for session buffers")
	flags.IntP("max-sessions", "m", 20, "maximum concurrent sessions (<=100)")
	flags.IntP("timeout", "o", 60, "session idle timeout in seconds (>=60)")
	flags.IntP("save-instance", "i", 0, "save-target instance id (>=0)")
	flags.Bool("use-aio", false, "prefer aio_save over save for eligible formats")
	flags.Bool("debug", false, "enable debug mode (exposes /debug)")

	for _, name := range []string{
		"foreground", "ssl", "ports", "docroot", "host", "port",
		"tmpdir", "max-sessions", "timeout", "save-instance", "use-aio", "debug",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			logging.Errorf("bind flag %s: %v", name, err)
		}
	}
}
