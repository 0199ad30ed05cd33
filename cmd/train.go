package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/bookkeeper/internal/progress"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Rebuild the vector index from the labelled dataset",
	Long: `Clears the index and reloads it from the labelled dataset CSV. Rows
without a category, or whose category is excluded, are skipped.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().String("dataset", "", "dataset CSV to train from (defaults to dataset.path)")
	trainCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	dataset, _ := cmd.Flags().GetString("dataset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	var reporter progress.Reporter
	if !jsonOutput {
		reporter = progress.NewReporter()
	}

	res := rt.engine.TrainPath(cliContext(), dataset, reporter)
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	if jsonOutput {
		return nil
	}

	fmt.Println(res.Message)
	if res.Summary != nil {
		fmt.Printf("  Skipped without category: %d\n", res.Summary.SkippedEmpty)
		fmt.Printf("  Skipped excluded:         %d\n", res.Summary.SkippedExcluded)
		fmt.Printf("  Malformed rows:           %d\n", res.Summary.Malformed)
	}
	if res.Stats != nil {
		printCategoryCounts(res.Stats.TotalRecords, res.Stats.CategoryCounts)
	}
	return nil
}

func printCategoryCounts(total int, counts map[string]int) {
	fmt.Printf("\nIndexed records: %d\n", total)
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, counts[name])
	}
}
