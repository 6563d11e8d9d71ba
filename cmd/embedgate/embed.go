package embedgate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vectorfold/embedgate"
	"github.com/vectorfold/embedgate/pkg/config"
	"github.com/vectorfold/embedgate/pkg/logger"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Embed texts through the resilient provider stack",
	Long: `Embed one or more texts and print the resulting vectors as JSON.

Texts are taken from the arguments, or read line by line from stdin when no
arguments are given. The full resilience stack is in play: rate-limit
backoff on the primary backend and transparent failover to the backup.`,
	RunE: runEmbed,
}

var (
	embedTimeout time.Duration
	embedDimsOnly bool
)

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().DurationVar(&embedTimeout, "timeout", 2*time.Minute, "Overall timeout for the embedding call")
	embedCmd.Flags().BoolVar(&embedDimsOnly, "dims-only", false, "Print only the vector dimension and count")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, flush, err := logger.New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer flush()

	texts := args
	if len(texts) == 0 {
		texts, err = readLines(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read texts from stdin: %w", err)
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("no texts to embed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	gateway, err := embedgate.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding gateway: %w", err)
	}
	defer gateway.Close()

	start := time.Now()
	vectors, err := gateway.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	log.Info("embedded texts",
		"count", len(vectors),
		"dimensions", gateway.Dimensions(),
		"role", string(gateway.ActiveRole()),
		"duration", time.Since(start))

	if embedDimsOnly {
		fmt.Printf("%d vectors, %d dimensions\n", len(vectors), gateway.Dimensions())
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(vectors)
}

func readLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
