package cmd

import (
	"fmt"
	"github.com/ValentinKolb/recstore/cmd/load"
	"github.com/ValentinKolb/recstore/cmd/perf"
	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "recstore",
		Short: "in-memory record store",
		Long: fmt.Sprintf(`recstore (v%s)

An in-memory record store library written in Go: typed and validated fields,
schemas with relationships, filtered views, secondary indexes and record expiration.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of recstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("recstore v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(load.LoadCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "codec"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("codec for datasets (json, gob, yaml). Defaults to the file extension"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("log level (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
