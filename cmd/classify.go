package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/bills"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/model"
	"github.com/ziadkadry99/bookkeeper/internal/report"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [bill files or globs...]",
	Short: "Merge Alipay and WeChat bills and fill in missing categories",
	Long: `Parses every Alipay and WeChat Pay statement matched by the arguments,
merges them in time order, predicts a category for every line that has
none and writes the result as a CSV bill. Patterns may use ** to match
statements in nested directories.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

var mergeCmd = &cobra.Command{
	Use:   "merge [bill files or globs...]",
	Short: "Merge Alipay and WeChat bills without classifying them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if _, err := loadConfig(); err != nil {
			return err
		}

		txs, err := parseBills(args)
		if err != nil {
			return err
		}
		return writeBill(output, bills.Rows(txs))
	},
}

func init() {
	classifyCmd.Flags().StringP("output", "o", "processed_bill.csv", "output CSV path, - for stdout")
	classifyCmd.Flags().String("report", "", "also write a summary report to this path (.md or .html)")
	mergeCmd.Flags().StringP("output", "o", "merged_bill.csv", "output CSV path, - for stdout")
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(mergeCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	reportPath, _ := cmd.Flags().GetString("report")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	txs, err := parseBills(args)
	if err != nil {
		return err
	}

	classified, err := rt.engine.Classify(cliContext(), txs)
	if err != nil {
		return fmt.Errorf("classifying bills: %w", err)
	}

	if err := writeBill(output, engine.BillRows(classified)); err != nil {
		return err
	}

	predicted := 0
	final := make([]model.Transaction, len(classified))
	for i, c := range classified {
		final[i] = c.Transaction
		if c.Predicted {
			predicted++
		}
	}
	fmt.Fprintf(os.Stderr, "Classified %d transactions, %d predicted from the index\n", len(classified), predicted)

	if reportPath != "" {
		if err := writeReport(reportPath, report.Calculate(final)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)
	}
	return nil
}

// parseBills expands patterns and parses every statement. Files that cannot
// be parsed are skipped with a warning.
func parseBills(patterns []string) ([]model.Transaction, error) {
	files, err := bills.Discover(patterns...)
	if err != nil {
		return nil, err
	}

	var statements [][]model.Transaction
	for _, path := range files {
		res := bills.ParseFile(path)
		if !res.OK() {
			logger.Warn("skipping bill", zap.String("path", path), zap.Stringer("outcome", res.Outcome), zap.Error(res.Err))
			continue
		}
		logger.Debug("parsed bill",
			zap.String("path", path),
			zap.String("format", string(res.Format)),
			zap.Int("transactions", len(res.Transactions)),
			zap.Int("skipped", res.Skipped),
		)
		statements = append(statements, res.Transactions)
	}

	merged := bills.Merge(statements...)
	if len(merged) == 0 {
		return nil, fmt.Errorf("no transactions found in %d file(s)", len(files))
	}
	return merged, nil
}

func writeBill(path string, rows []bills.Row) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	return bills.WriteCSV(w, rows)
}

func writeReport(path string, s report.Summary) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		html, err := report.RenderHTML(s)
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		content = html
	default:
		content = report.RenderMarkdown(s)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
