package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LuuuXXX/crater-ohos/internal/clitable"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage workers",
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerRegisterCmd, workerListCmd)
}

var workerCapabilities string

var workerRegisterCmd = &cobra.Command{
	Use:   "register <display-name>",
	Short: "Register a new worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, workers, err := openWorkerRegistry()
		if err != nil {
			return err
		}
		defer db.Close()

		var caps []string
		if workerCapabilities != "" {
			caps = strings.Split(workerCapabilities, ",")
		}
		wk, err := workers.Register(cmd.Context(), args[0], caps)
		if err != nil {
			return err
		}
		fmt.Printf("worker %q registered (id=%s)\n", wk.DisplayName, wk.ID)
		return nil
	},
}

func init() {
	workerRegisterCmd.Flags().StringVar(&workerCapabilities, "capabilities", "", "comma-separated capability list")
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, workers, err := openWorkerRegistry()
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := workers.List(cmd.Context())
		if err != nil {
			return err
		}
		tbl := clitable.Table{Header: []string{"ID", "NAME", "STATUS", "LAST-HEARTBEAT"}}
		for _, wk := range all {
			tbl.Rows = append(tbl.Rows, []string{
				wk.ID, wk.DisplayName, string(wk.Status), wk.LastHeartbeat.Format("2006-01-02T15:04:05Z"),
			})
		}
		fmt.Print(tbl.Render())
		return nil
	},
}
