package cli

import (
	"fmt"
	"strings"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/spf13/cobra"
)

var (
	askStream  bool
	askContext bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the saved index",
	Long: `Retrieves the passages most similar to the question from the saved index
and asks the generation model to answer from them. Without relevant
passages a fixed answer is printed and the model is not called.

--stream prints the answer as it is generated; it is ignored with --json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askStream, "stream", "s", false, "stream the answer as it is generated")
	askCmd.Flags().BoolVarP(&askContext, "context", "c", false, "include retrieved context and sources")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	p := components.Pipeline
	if _, err := p.LoadIndex(""); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if askStream && !askJSON {
		seq, err := p.StreamQuery(ctx, question)
		if err != nil {
			return fmt.Errorf("question failed: %w", err)
		}
		for fragment, err := range seq {
			if err != nil {
				fmt.Fprintln(out)
				return fmt.Errorf("question failed: %w", err)
			}
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
		return nil
	}

	resp, err := p.Query(ctx, models.QueryRequest{Question: question, ReturnContext: askContext})
	if err != nil {
		return fmt.Errorf("question failed: %w", err)
	}
	return WriteAnswer(out, resp, formatFor(askJSON))
}
