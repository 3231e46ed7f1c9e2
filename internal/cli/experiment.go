package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/LuuuXXX/crater-ohos/internal/clitable"
	"github.com/LuuuXXX/crater-ohos/internal/experiment"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/progress"
	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage experiments",
}

func init() {
	rootCmd.AddCommand(experimentCmd)
	experimentCmd.AddCommand(experimentCreateCmd, experimentEditCmd, experimentListCmd,
		experimentGetCmd, experimentDeleteCmd, experimentRunCmd, experimentAbortCmd)
}

var (
	createToolchainA, createToolchainB, createMode, createCapLints, createSelect string
	createPriority                                                              int
)

var experimentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Define a new experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		tcA, err := toolchain.Parse(createToolchainA)
		if err != nil {
			return fmt.Errorf("toolchain-a: %w", err)
		}
		tcB, err := toolchain.Parse(createToolchainB)
		if err != nil {
			return fmt.Errorf("toolchain-b: %w", err)
		}
		mode, err := experiment.ParseMode(createMode)
		if err != nil {
			return err
		}
		cap, err := experiment.ParseCapLints(createCapLints)
		if err != nil {
			return err
		}
		sel, err := pkgselect.ParseSelection(createSelect)
		if err != nil {
			return fmt.Errorf("crate-select: %w", err)
		}

		exp, err := exps.Create(cmd.Context(), experiment.CreateRequest{
			Name: args[0], ToolchainA: tcA, ToolchainB: tcB,
			Mode: mode, CapLints: cap, Priority: createPriority, PackageSelection: sel,
		})
		if err != nil {
			return err
		}
		fmt.Printf("experiment %q created (status=%s)\n", exp.Name, exp.Status)
		return nil
	},
}

func init() {
	f := experimentCreateCmd.Flags()
	f.StringVar(&createToolchainA, "toolchain-a", "", "first toolchain (required)")
	f.StringVar(&createToolchainB, "toolchain-b", "", "second toolchain (required)")
	f.StringVar(&createMode, "mode", "build-and-test", "experiment mode")
	f.StringVar(&createCapLints, "cap-lints", "warn", "cap-lints level")
	f.StringVar(&createSelect, "crate-select", "demo", "package selection strategy")
	f.IntVar(&createPriority, "priority", 0, "scheduling priority")
	_ = experimentCreateCmd.MarkFlagRequired("toolchain-a")
	_ = experimentCreateCmd.MarkFlagRequired("toolchain-b")
}

var (
	editMode, editSelect, editCallbackURL string
	editPriority                          int
	editPrioritySet                       bool
)

var experimentEditCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a queued experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		patch := experiment.EditPatch{}
		if editMode != "" {
			mode, err := experiment.ParseMode(editMode)
			if err != nil {
				return err
			}
			patch.Mode = &mode
		}
		if editSelect != "" {
			sel, err := pkgselect.ParseSelection(editSelect)
			if err != nil {
				return err
			}
			patch.PackageSelection = &sel
		}
		if editCallbackURL != "" {
			patch.CallbackURL = &editCallbackURL
		}
		if editPrioritySet {
			patch.Priority = &editPriority
		}

		exp, err := exps.Edit(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		fmt.Printf("experiment %q updated\n", exp.Name)
		return nil
	},
}

func init() {
	f := experimentEditCmd.Flags()
	f.StringVar(&editMode, "mode", "", "new experiment mode")
	f.StringVar(&editSelect, "crate-select", "", "new package selection strategy")
	f.StringVar(&editCallbackURL, "callback-url", "", "new callback URL")
	f.IntVar(&editPriority, "priority", 0, "new scheduling priority")
	experimentEditCmd.PreRun = func(cmd *cobra.Command, args []string) {
		editPrioritySet = cmd.Flags().Changed("priority")
	}
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := exps.List(cmd.Context())
		if err != nil {
			return err
		}
		tbl := clitable.Table{Header: []string{"NAME", "STATUS", "MODE", "PRIORITY"}}
		for _, exp := range all {
			tbl.Rows = append(tbl.Rows, []string{
				exp.Name, string(exp.Status), string(exp.Mode), fmt.Sprint(exp.Priority),
			})
		}
		fmt.Print(tbl.Render())
		return nil
	},
}

var experimentGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show one experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, results, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		exp, err := exps.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("name:       %s\n", exp.Name)
		fmt.Printf("status:     %s\n", exp.Status)
		fmt.Printf("mode:       %s\n", exp.Mode)
		fmt.Printf("toolchains: %s vs %s\n", exp.ToolchainA, exp.ToolchainB)
		fmt.Printf("priority:   %d\n", exp.Priority)
		printProgress(cmd, exp, results)
		return nil
	},
}

// printProgress renders the derived percentage/ETA for a running
// experiment, skipping entirely once it's left the running state (the
// numbers are only meaningful while packages are still being processed).
func printProgress(cmd *cobra.Command, exp experiment.Experiment, results *result.Store) {
	if exp.Status != experiment.StatusRunning {
		return
	}
	resolver := pkgselect.NewResolver()
	packages, err := resolver.Resolve(exp.PackageSelection)
	if err != nil || len(packages) == 0 {
		return
	}
	completed, err := results.Count(cmd.Context(), exp.Name)
	if err != nil {
		return
	}
	total := len(packages)
	pct := progress.Percentage(completed, total)
	fmt.Printf("progress:   %.1f%% (%d/%d)\n", pct, completed, total)

	avg, avgOK := progress.AvgTaskSeconds(exp.StartedAt, time.Now(), completed)
	etaSecs, etaOK := progress.ETASeconds(avg, avgOK, completed, total)
	if !etaOK {
		return
	}
	eta := time.Now().Add(time.Duration(etaSecs * float64(time.Second)))
	avgDuration := time.Duration(avg * float64(time.Second))
	fmt.Printf("eta:        %s (avg %s/package)\n", humanize.Time(eta), avgDuration.Round(time.Second))
}

var experimentDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := exps.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "experiment %q deleted\n", args[0])
		return nil
	},
}

var experimentRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Move a queued experiment to running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		exp, err := exps.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("experiment %q is now %s\n", exp.Name, exp.Status)
		return nil
	},
}

var experimentAbortCmd = &cobra.Command{
	Use:   "abort <name>",
	Short: "Abort a running experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, exps, _, err := openRegistries()
		if err != nil {
			return err
		}
		defer db.Close()

		exp, err := exps.Abort(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("experiment %q is now %s\n", exp.Name, exp.Status)
		return nil
	},
}
