package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show training and classification history",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().String("action", "", "only show this action, e.g. retrain_completed")
	historyCmd.Flags().String("category", "", "only show entries touching this category")
	historyCmd.Flags().Duration("since", 0, "only show entries newer than this, e.g. 72h")
	historyCmd.Flags().Int("limit", 20, "maximum number of entries")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	action, _ := cmd.Flags().GetString("action")
	category, _ := cmd.Flags().GetString("category")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	filter := audit.QueryFilter{
		Action:     audit.Action(action),
		Category:   category,
		Collection: rt.engine.Collection(),
		Limit:      limit,
	}
	if since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	entries, err := rt.audit.Query(cliContext(), filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %-6s %-18s %s\n", e.Timestamp.Local().Format(time.DateTime), e.ActorType, e.Action, e.Summary)
		if e.Dataset != "" {
			fmt.Printf("    dataset: %s\n", e.Dataset)
		}
		if len(e.Categories) > 0 {
			fmt.Printf("    categories: %s\n", strings.Join(e.Categories, ", "))
		}
		if e.Detail != "" {
			fmt.Printf("    %s\n", e.Detail)
		}
	}
	return nil
}
