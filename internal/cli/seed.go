package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/retrieval"
)

const defaultSeedBatchSize = 64

// Seeder embeds feed summaries and writes them to a docstore.
type Seeder struct {
	Embedder   ai.Embedder
	Model      string
	Writer     docstore.Writer
	Normalizer *retrieval.Normalizer
	BatchSize  int
}

// Seed reads a JSON array of feed documents from r and inserts each with
// its summary text and embedding. It returns the number of inserted feeds.
func (s Seeder) Seed(ctx context.Context, r io.Reader) (int, error) {
	if s.Embedder == nil {
		return 0, ai.ErrClientUnavailable
	}
	var feeds []map[string]any
	if err := json.NewDecoder(r).Decode(&feeds); err != nil {
		return 0, fmt.Errorf("decode feeds: %w", err)
	}

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSeedBatchSize
	}
	normalizer := s.Normalizer
	if normalizer == nil {
		normalizer = retrieval.NewNormalizer(nil)
	}

	inserted := 0
	for start := 0; start < len(feeds); start += batchSize {
		end := min(start+batchSize, len(feeds))
		batch := make([]docstore.EmbeddedDocument, 0, end-start)
		texts := make([]string, 0, end-start)
		for _, fields := range feeds[start:end] {
			record := normalizer.FromDocument(docstore.Document{Fields: fields})
			text := retrieval.FeedSummary(record)
			texts = append(texts, text)
			batch = append(batch, docstore.EmbeddedDocument{
				Document: docstore.Document{ID: record.ID, Text: text, Fields: fields},
			})
		}

		result, err := s.Embedder.Embed(ctx, ai.EmbedRequest{Model: s.Model, Input: texts})
		if err != nil {
			return inserted, fmt.Errorf("embed feeds %d-%d: %w", start, end, err)
		}
		if len(result.Vectors) != len(batch) {
			return inserted, fmt.Errorf("embed feeds %d-%d: got %d vectors", start, end, len(result.Vectors))
		}
		for index := range batch {
			batch[index].Embedding = result.Vectors[index]
		}

		if err := s.Writer.Insert(ctx, batch); err != nil {
			return inserted, err
		}
		inserted += len(batch)
	}
	return inserted, nil
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		file         string
		batchSize    int
		ensureSchema bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Embed and load feeds from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if !application.AIClient.Available() {
				return errors.New("seeding needs LLM_API_KEY for embeddings")
			}
			if ensureSchema {
				if pg, ok := application.Docstore.(*docstore.PostgresStore); ok {
					if err := pg.EnsureSchema(cmd.Context(), application.Config.EmbeddingDimensions); err != nil {
						return err
					}
				}
			}

			input, err := os.Open(file)
			if err != nil {
				return err
			}
			defer input.Close()

			seeder := Seeder{
				Embedder:  application.AIClient,
				Model:     application.ModelRouter.Select(ai.TaskEmbedding).Model,
				Writer:    application.Docstore,
				BatchSize: batchSize,
			}
			count, err := seeder.Seed(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"inserted": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d feeds\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of feeds")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaultSeedBatchSize, "feeds embedded per request")
	cmd.Flags().BoolVar(&ensureSchema, "ensure-schema", true, "create the postgres feeds table when missing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
