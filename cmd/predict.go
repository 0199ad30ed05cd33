package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/bookkeeper/internal/predictor"
)

var predictCmd = &cobra.Command{
	Use:   "predict [merchant] [product]",
	Short: "Predict the category of one transaction",
	Long: `Embeds the merchant and product, looks up the nearest labelled
transactions and reduces them to a category with the configured policy.`,
	Args: cobra.ExactArgs(2),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("policy", "", "voting policy: best_of_filtered_vote, weighted_softmax or single_nearest_threshold")
	predictCmd.Flags().Int("top-k", 0, "number of neighbours to vote over")
	predictCmd.Flags().Float64("threshold", -1, "similarity threshold in [0, 1]")
	predictCmd.Flags().String("payment-method", "", "payment method of the transaction")
	predictCmd.Flags().String("direction", "", "收入 or 支出")
	predictCmd.Flags().Int("similar", 0, "also list this many similar labelled transactions")
	predictCmd.Flags().Bool("json", false, "output the prediction as JSON")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	policy, _ := cmd.Flags().GetString("policy")
	topK, _ := cmd.Flags().GetInt("top-k")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	method, _ := cmd.Flags().GetString("payment-method")
	direction, _ := cmd.Flags().GetString("direction")
	similar, _ := cmd.Flags().GetInt("similar")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	params := rt.engine.Params()
	if policy != "" {
		p, err := predictor.ParsePolicy(policy)
		if err != nil {
			return err
		}
		params.Policy = p
	}
	if topK > 0 {
		params.TopK = topK
	}
	if cmd.Flags().Changed("threshold") {
		params.Threshold = threshold
	}

	ctx := cliContext()
	q := predictor.Query{Merchant: args[0], Product: args[1], PaymentMethod: method, Direction: direction}
	pred, err := rt.engine.PredictWith(ctx, q, params)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}

	var neighbors []predictor.Neighbor
	if similar > 0 {
		neighbors, err = rt.engine.Similar(ctx, q, similar)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Prediction predictor.Prediction `json:"prediction"`
			Similar    []predictor.Neighbor `json:"similar,omitempty"`
		}{pred, neighbors})
	}

	if pred.Found() {
		fmt.Printf("Category:   %s\n", pred.Category)
	} else {
		fmt.Println("Category:   (none)")
	}
	fmt.Printf("Confidence: %.4f\n", pred.Confidence)
	fmt.Printf("Policy:     %s\n", params.Policy)

	if len(neighbors) > 0 {
		fmt.Printf("\nSimilar transactions:\n")
		for i, n := range neighbors {
			fmt.Printf("  %d. [%.1f%%] %s -> %s\n", i+1, n.Similarity*100, n.Document, n.Category)
		}
	}
	return nil
}
