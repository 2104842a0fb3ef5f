package cli

import (
	"fmt"

	"finreg-audit/llm"
	"finreg-audit/service"

	"github.com/spf13/cobra"
)

func (app *Application) newIndexCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:     "index",
		Short:   "Replace the vector index with the corpus in a directory",
		Example: "  finreg-audit index --input ./corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			ctx := cmd.Context()

			chunks, closeIndex, err := app.openChunkStore(ctx)
			if err != nil {
				return err
			}
			defer closeIndex()

			client, err := app.openGemini(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			index := service.NewVectorIndex(llm.NewGeminiEmbedder(client, app.cfg.Gemini.EmbeddingModel), chunks, app.logger.Named("index"))
			n, err := app.ingestAndIndex(ctx, input, index)
			if err != nil {
				return err
			}
			total, err := index.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks (%d in index)\n", n, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Corpus directory with pdfs/, excel/, interviews/, screenshots/, logs/.")
	return cmd
}
