package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string
	jsonOut   bool

	// Query command flags
	maxResults  int
	product     string
	useReranker bool
	useMMR      bool
	queryID     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "retrieval-cli",
	Short:   "Query the support retrieval service",
	Version: version,
}

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run a retrieval query",
	Long: `Run a retrieval query against the service and print the returned
chunks with their scores.

Examples:
  # Plain hybrid search
  retrieval-cli query "how do I reset my router"

  # With cross-encoder reranking and diversity
  retrieval-cli query --rerank --mmr "warranty for model X200"

  # Restrict to one product line
  retrieval-cli query --product "X200" "warranty claim"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "retrieval service base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print the raw JSON response")

	queryCmd.Flags().IntVar(&maxResults, "max-results", 0, "maximum results (0 uses the server default)")
	queryCmd.Flags().StringVar(&product, "product", "", "filter chunks by purchased product")
	queryCmd.Flags().BoolVar(&useReranker, "rerank", false, "enable cross-encoder reranking")
	queryCmd.Flags().BoolVar(&useMMR, "mmr", false, "enable diversity selection")
	queryCmd.Flags().StringVar(&queryID, "query-id", "", "explicit query id (generated when empty)")

	rootCmd.AddCommand(queryCmd)
}

type queryResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
	Result     *struct {
		Chunks   []string `json:"chunks"`
		Metadata []struct {
			ID         string `json:"id"`
			FinalScore float64 `json:"final_score"`
			Source     string  `json:"source"`
		} `json:"metadata"`
		AuditKey string `json:"quality_audit_key"`
	} `json:"result,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"user_query":   args[0],
		"use_reranker": useReranker,
		"use_mmr":      useMMR,
	}
	if maxResults > 0 {
		payload["max_results"] = maxResults
	}
	if product != "" {
		payload["product_filter"] = product
	}
	if queryID != "" {
		payload["query_id"] = queryID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(serverURL+"/v1/retrieval/query", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if jsonOut {
		var pretty bytes.Buffer
		dec := json.NewDecoder(resp.Body)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return err
		}
		fmt.Println(pretty.String())
		return nil
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || qr.Result == nil {
		fmt.Printf("Query failed (status %d): %s\n", resp.StatusCode, qr.Error)
		os.Exit(1)
	}

	fmt.Printf("Results: %d\n\n", len(qr.Result.Chunks))
	for i, chunk := range qr.Result.Chunks {
		meta := qr.Result.Metadata[i]
		fmt.Printf("--- [%d] %s (score %.4f", i+1, meta.ID, meta.FinalScore)
		if meta.Source != "" {
			fmt.Printf(", source %s", meta.Source)
		}
		fmt.Printf(")\n%s\n\n", chunk)
	}
	if qr.Result.AuditKey != "" {
		fmt.Printf("Audit record: %s\n", qr.Result.AuditKey)
	}
	return nil
}
