package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after the config file, --seed and --difficulty
are applied. Use --output to write it to a file as a starting point.

Examples:
  flappyrl config
  flappyrl config --difficulty hard --output ~/.flappyrl/flappy.yaml`,
	Args: cobra.NoArgs,
	Run:  runConfig,
}

func init() {
	configCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the config to this file instead of stdout")
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flagOutput != "" {
		if err := cfg.WriteYAML(flagOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", flagOutput)
		return
	}

	data, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(data))
}
