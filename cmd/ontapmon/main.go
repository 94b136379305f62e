package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ontapmon/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "ontapmon",
	Short: "Monitoring and reporting for FSx for ONTAP file systems",
	Long: `ontapmon polls an FSx for ONTAP cluster, evaluates configurable alerting
rules against its state, and publishes deduplicated alerts to SNS and other
sinks. It can also generate capacity reports over the file systems in one or
more regions.`,
}

func init() {
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
