package mcp

import "github.com/mark3labs/mcp-go/mcp"

// predictCategoryTool defines the predict_category MCP tool.
var predictCategoryTool = mcp.NewTool("predict_category",
	mcp.WithDescription("Predict the spending category of a transaction from its merchant and product, by voting over similar labelled transactions."),
	mcp.WithString("merchant",
		mcp.Required(),
		mcp.Description("Counterparty of the transaction, e.g. 星巴克"),
	),
	mcp.WithString("product",
		mcp.Required(),
		mcp.Description("Product or description of the transaction, e.g. 拿铁咖啡"),
	),
	mcp.WithString("payment_method",
		mcp.Description("Payment method, used by the extended document format"),
	),
	mcp.WithString("direction",
		mcp.Description("收入 (income) or 支出 (expense), used by the extended document format"),
	),
	mcp.WithString("policy",
		mcp.Description("Voting policy (defaults to the configured one)"),
		mcp.Enum("best_of_filtered_vote", "weighted_softmax", "single_nearest_threshold"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Number of neighbours to vote over"),
		mcp.Min(1),
	),
	mcp.WithNumber("threshold",
		mcp.Description("Similarity threshold in [0, 1]"),
		mcp.Min(0),
		mcp.Max(1),
	),
)

// searchSimilarTool defines the search_similar MCP tool.
var searchSimilarTool = mcp.NewTool("search_similar",
	mcp.WithDescription("List the labelled transactions most similar to a merchant and product, with their categories and similarity."),
	mcp.WithString("merchant",
		mcp.Required(),
		mcp.Description("Counterparty of the transaction"),
	),
	mcp.WithString("product",
		mcp.Description("Product or description of the transaction"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
	mcp.WithString("category",
		mcp.Description("Only return records of this category"),
	),
	mcp.WithString("direction",
		mcp.Description("Only return records with this direction"),
		mcp.Enum("收入", "支出"),
	),
)

// listCategoriesTool defines the list_categories MCP tool.
var listCategoriesTool = mcp.NewTool("list_categories",
	mcp.WithDescription("List every category present in the index."),
)

// indexStatsTool defines the index_stats MCP tool.
var indexStatsTool = mcp.NewTool("index_stats",
	mcp.WithDescription("Get the number of indexed records and the record count per category."),
)

// addRecordTool defines the add_record MCP tool.
var addRecordTool = mcp.NewTool("add_record",
	mcp.WithDescription("Add one labelled transaction to the index so later predictions learn from it."),
	mcp.WithString("merchant",
		mcp.Required(),
		mcp.Description("Counterparty of the transaction"),
	),
	mcp.WithString("product",
		mcp.Required(),
		mcp.Description("Product or description of the transaction"),
	),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category to label the transaction with"),
	),
	mcp.WithString("amount",
		mcp.Description("Amount in yuan"),
	),
	mcp.WithString("time",
		mcp.Description("Transaction time, e.g. 2024-03-01 08:15:00"),
	),
	mcp.WithString("payment_method",
		mcp.Description("Payment method"),
	),
	mcp.WithString("direction",
		mcp.Description("收入 or 支出"),
	),
)
