// internal/commands/show_config.go
package commands

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// showCmd groups the inspection subcommands.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect the running setup",
}

// showConfigCmd dumps the effective configuration after the config file and
// flag overrides have been merged.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective config settings",
	Run: func(cmd *cobra.Command, args []string) {
		pp.SetDefaultOutput(cmd.OutOrStdout())
		if file := viper.ConfigFileUsed(); file != "" {
			pp.Printf("config file: %s\n", file)
		}
		pp.Println(GetConfig())
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(showCmd)
}
