package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "epochledger",
	Short: "Epoch based activity ledger that turns curated contributions into exact credit payouts",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "epochledger", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "epochledger", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL sslmode (disable, require, verify-ca, verify-full)`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `Path to the client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `Path to the client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `Path to the root certificate`)

	rootCmd.PersistentFlags().String(config.LedgerNodeId, "", `Node every read and write is scoped to (required)`)
	rootCmd.PersistentFlags().String(config.LedgerScopeId, "", `Scope new epochs and events belong to`)
	rootCmd.PersistentFlags().String(config.LedgerWeightConfigFile, "", `YAML file mapping event types to integer weights`)
	rootCmd.PersistentFlags().Bool(config.LedgerProofsEnabled, false, `Serve allocation inclusion proofs`)

	rootCmd.PersistentFlags().Bool(config.SchedulerEnabled, true, `Seed and recompute epochs once their period has ended`)
	rootCmd.PersistentFlags().Duration(config.SchedulerInterval, 0, `How often the scheduler checks open epochs (default 5m)`)

	rootCmd.PersistentFlags().Int(config.RpcGrpcPort, 7100, `gRPC port`)
	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Bool(config.TracingEnabled, false, `Export traces over OTLP/HTTP`)
	rootCmd.PersistentFlags().String(config.TracingEndpoint, "", `e.g. "localhost:4318"`)
	rootCmd.PersistentFlags().String(config.TracingServiceName, "epochledger", `Service name attached to exported traces`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(epochCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statementCmd)
	rootCmd.AddCommand(verifyCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// initCommandFlags binds a subcommand's own flags the same way the root binds its persistent flags.
func initCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
