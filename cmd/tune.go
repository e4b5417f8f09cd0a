package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zjrosen/taskreview/internal/config"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Adjust the review pane constants in the config file",
	Long: `Write new values for the review pane tuning constants. Only the flags given
are changed; the rest of the review section keeps its current values. Other
sections of the config file are left untouched.`,
	Example: `  taskreview tune --stability-window 120ms --prefetch-buffer 8
  taskreview tune --default-collapsed deleted,renamed`,
	Args: cobra.NoArgs,
	RunE: runTune,
}

func init() {
	f := tuneCmd.Flags()
	d := config.DefaultReview()
	f.Float64("align-epsilon", d.AlignEpsilon, "distance from the top that counts as arrived at a jump target")
	f.Duration("stability-window", d.StabilityWindow, "how long a file must stay on top before it is reported in view")
	f.Duration("override-window", d.OverrideWindow, "scroll input sooner than this after a jump is treated as momentum")
	f.Duration("prefetch-delay", d.PrefetchDelay, "delay that collapses scroll bursts into one prefetch pass")
	f.Int("prefetch-buffer", d.PrefetchBuffer, "items prefetched on each side of the visible range")
	f.Int("prefetch-max-lines", d.PrefetchMaxLines, "larger files are rendered on demand only")
	f.Int("collapse-max-lines", d.CollapseMaxLines, "larger files start collapsed")
	f.StringSlice("default-collapsed", d.DefaultCollapsed, "change kinds that start collapsed")
	f.Float64("min-default-height", d.MinDefaultHeight, "floor for the placeholder height")
	f.Float64("line-height", d.LineHeight, "estimated height of one diff line")
	f.Int64("max-cumulative-bytes", d.MaxCumulativeBytes, "file contents beyond this total are omitted")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, _ []string) error {
	review, changed, err := applyTuneFlags(cfg.Review, cmd.Flags())
	if err != nil {
		return err
	}
	if changed == 0 {
		return fmt.Errorf("no tuning flags given")
	}

	path := viper.ConfigFileUsed()
	if path == "" {
		path = filepath.Join(userConfigDir(), "config.yaml")
	}
	if err := config.SaveReview(path, review); err != nil {
		return fmt.Errorf("saving review config: %w", err)
	}
	cfg.Review = review
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d review setting(s) in %s\n", changed, path)
	return nil
}

// applyTuneFlags overlays the explicitly set flags onto review.
func applyTuneFlags(review config.ReviewConfig, flags *pflag.FlagSet) (config.ReviewConfig, int, error) {
	var (
		changed int
		err     error
	)
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		changed++
		switch f.Name {
		case "align-epsilon":
			review.AlignEpsilon, err = flags.GetFloat64(f.Name)
		case "stability-window":
			review.StabilityWindow, err = flags.GetDuration(f.Name)
		case "override-window":
			review.OverrideWindow, err = flags.GetDuration(f.Name)
		case "prefetch-delay":
			review.PrefetchDelay, err = flags.GetDuration(f.Name)
		case "prefetch-buffer":
			review.PrefetchBuffer, err = flags.GetInt(f.Name)
		case "prefetch-max-lines":
			review.PrefetchMaxLines, err = flags.GetInt(f.Name)
		case "collapse-max-lines":
			review.CollapseMaxLines, err = flags.GetInt(f.Name)
		case "default-collapsed":
			review.DefaultCollapsed, err = flags.GetStringSlice(f.Name)
		case "min-default-height":
			review.MinDefaultHeight, err = flags.GetFloat64(f.Name)
		case "line-height":
			review.LineHeight, err = flags.GetFloat64(f.Name)
		case "max-cumulative-bytes":
			review.MaxCumulativeBytes, err = flags.GetInt64(f.Name)
		default:
			changed--
		}
	})
	if err != nil {
		return review, 0, err
	}
	return review, changed, nil
}
