package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
	"github.com/turtacn/MOFRAC-Engine/internal/bootstrap"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/search/milvus"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// searchOptions holds the search command flags.
type searchOptions struct {
	TopK  int
	Depth int
}

// NewSearchCmd creates the search subcommand, which featurizes a query
// structure and finds its nearest neighbors in the Milvus descriptor
// collection.
func NewSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <structure.cif>",
		Short: "Find structures with similar descriptor vectors",
		Long: "Search featurizes the query structure (or reuses its cached vector) and\n" +
			"runs a nearest-neighbor query against the descriptor collection.\n" +
			"Requires milvus.enabled; structures must have been indexed by prior\n" +
			"featurize runs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args[0])
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.TopK, "top-k", "k", 0, "number of neighbors to return (default from config)")
	fs.IntVarP(&opts.Depth, "depth", "d", 0, "maximum autocorrelation hop distance (default from config)")

	return cmd
}

func runSearch(cmd *cobra.Command, opts *searchOptions, structurePath string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if !cliCtx.Config.Milvus.Enabled {
		return errors.New(errors.ErrCodeValidation, "search requires milvus.enabled in the configuration")
	}

	cfg := *cliCtx.Config
	if cmd.Flags().Changed("depth") {
		cfg.Featurization.Depth = opts.Depth
	}

	backends, err := bootstrap.Build(&cfg, cliCtx.Logger, nil)
	if err != nil {
		return err
	}
	defer backends.Close()

	ctx := cmd.Context()

	// Featurize the query structure; a cache hit skips the pipeline.
	service := featurization.NewService(backends.Deps)
	res, err := service.Featurize(ctx, featurization.NewRequest(structurePath, &cfg))
	if err != nil {
		return err
	}
	if res.Status != featurization.StatusSuccess {
		return errors.New(errors.ErrCodeEmptyFeaturization,
			fmt.Sprintf("query structure %s could not be featurized (%s)", res.Name, res.Code))
	}

	hits, err := backends.Searcher.Search(ctx, res.Values, opts.TopK)
	if err != nil {
		return err
	}

	return PrintResult(cmd, searchResults{Query: res.Name, Hits: hits})
}

// searchResults renders nearest-neighbor hits for every output format.
type searchResults struct {
	Query string                    `json:"query"`
	Hits  []milvus.SimilarStructure `json:"hits"`
}

func (s searchResults) TableHeaders() []string {
	return []string{"STRUCTURE", "DISTANCE"}
}

func (s searchResults) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Hits))
	for _, h := range s.Hits {
		rows = append(rows, []string{h.Structure, fmt.Sprintf("%.4f", h.Distance)})
	}
	return rows
}

func (s searchResults) String() string {
	if len(s.Hits) == 0 {
		return fmt.Sprintf("no neighbors found for %s", s.Query)
	}
	out := fmt.Sprintf("nearest neighbors of %s:", s.Query)
	for i, h := range s.Hits {
		out += fmt.Sprintf("\n%2d. %s (distance %.4f)", i+1, h.Structure, h.Distance)
	}
	return out
}
