package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories present in the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		categories, err := rt.engine.ListCategories(cliContext())
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			fmt.Println("Index is empty. Run `bookkeeper train` first.")
			return nil
		}
		fmt.Println(strings.Join(categories, "\n"))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of indexed records per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.engine.Stats(cliContext())
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("Collection: %s\n", rt.engine.Collection())
		printCategoryCounts(stats.TotalRecords, stats.CategoryCounts)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(statsCmd)
}
