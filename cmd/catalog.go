package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/taskreview/internal/git"
	"github.com/zjrosen/taskreview/internal/review"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/prefetch"
	"github.com/zjrosen/taskreview/internal/tracing"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the review catalog as JSON",
	Long: `Load the worktree's changes and print the ordered catalog the review pane
would show: paths, change kinds, counts, initial expansion and prefetch
eligibility.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

type catalogItemOutput struct {
	Index           int    `json:"index"`
	Path            string `json:"path"`
	OldPath         string `json:"old_path,omitempty"`
	ChangeKind      string `json:"change_kind"`
	Additions       int    `json:"additions"`
	Deletions       int    `json:"deletions"`
	InitialExpanded bool   `json:"initial_expanded"`
	ContentOmitted  bool   `json:"content_omitted,omitempty"`
	PrefetchSkip    string `json:"prefetch_skip,omitempty"`
}

type catalogOutput struct {
	Base          string              `json:"base"`
	Identity      string              `json:"identity"`
	DefaultHeight float64             `json:"default_height"`
	Items         []catalogItemOutput `json:"items"`
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	exec, _, err := openWorktree()
	if err != nil {
		return err
	}
	records, err := git.LoadDiffs(cmd.Context(), exec, cfg.Base, loadOptions(tracing.Noop()))
	if err != nil {
		return fmt.Errorf("loading diffs: %w", err)
	}
	return writeCatalog(cmd.OutOrStdout(), cfg.Base, records)
}

func writeCatalog(w io.Writer, base string, records []catalog.DiffRecord) error {
	rc := review.ConfigFrom(cfg.Review, cfg.Render)
	pane := review.New(rc, review.Deps{})
	defer pane.Close()
	pane.SetDiffs(records)

	cat := pane.Catalog()
	out := catalogOutput{
		Base:          base,
		Identity:      cat.Identity(),
		DefaultHeight: pane.DefaultHeight(),
		Items:         make([]catalogItemOutput, 0, cat.Len()),
	}
	for i, item := range cat.Items() {
		out.Items = append(out.Items, catalogItemOutput{
			Index:           i,
			Path:            item.Key,
			OldPath:         item.OldPath,
			ChangeKind:      string(item.ChangeKind),
			Additions:       item.Additions,
			Deletions:       item.Deletions,
			InitialExpanded: item.InitialExpanded,
			ContentOmitted:  item.ContentOmitted,
			PrefetchSkip:    prefetch.SkipReason(item, rc.Prefetch.MaxLines),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
