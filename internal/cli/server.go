package cli

import (
	"github.com/spf13/cobra"

	"github.com/LuuuXXX/crater-ohos/internal/daemon"
)

var (
	serverAddr       string
	serverConfigPath string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon.Run(cmd.Context(), daemon.Options{
			Addr:           serverAddr,
			DatabasePath:   dbPath,
			TOMLConfigPath: serverConfigPath,
		})
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	f := serverCmd.Flags()
	f.StringVar(&serverAddr, "addr", "", "listen address (default: $RP_ADDR or :8080)")
	f.StringVar(&serverConfigPath, "config", "", "platform config TOML path (default: $CRATER_CONFIG_PATH or crater.toml)")
}
