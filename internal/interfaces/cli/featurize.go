package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
	"github.com/turtacn/MOFRAC-Engine/internal/bootstrap"
	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// featurizeOptions holds the featurize command flags.
type featurizeOptions struct {
	Depth         int
	WiggleRoom    float64
	MaxAtoms      int
	GraphProvided bool
	BondInfo      bool
	SurroundedSBU bool
	DetectRod     bool
	OutputPath    string
	XYZPath       string
	Workers       int
}

// NewFeaturizeCmd creates the featurize subcommand.  It accepts CIF files
// and directories; directories are expanded to the CIF files directly inside
// them.
func NewFeaturizeCmd() *cobra.Command {
	opts := &featurizeOptions{}

	cmd := &cobra.Command{
		Use:   "featurize <structure.cif|dir> [...]",
		Short: "Decompose MOF structures and generate RAC descriptors",
		Long: "Featurize runs the full pipeline for each structure: CIF parsing, bond\n" +
			"graph construction, connectivity validation, SBU/linker partitioning, and\n" +
			"RAC descriptor generation.  Structures that cannot be featurized are\n" +
			"recorded in FailedStructures.log and reported with a sentinel result\n" +
			"instead of aborting the batch.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeaturize(cmd, opts, args)
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.Depth, "depth", "d", 0, "maximum autocorrelation hop distance (default from config)")
	fs.Float64Var(&opts.WiggleRoom, "wiggle-room", 0, "covalent-radius bond cutoff scale (default from config)")
	fs.IntVar(&opts.MaxAtoms, "max-atoms", 0, "reject unit cells above this atom count (0 disables)")
	fs.BoolVar(&opts.GraphProvided, "graph-provided", false, "read the bond graph from embedded bond records")
	fs.BoolVar(&opts.BondInfo, "bond-info", false, "emit per-bond diagnostic records")
	fs.BoolVar(&opts.SurroundedSBU, "surrounded-sbu", false, "emit SBUs with their surrounding linker shells")
	fs.BoolVar(&opts.DetectRod, "detect-rod", false, "detect and record rod-like SBUs")
	fs.StringVar(&opts.OutputPath, "out", "", "output directory root (default from config)")
	fs.StringVar(&opts.XYZPath, "xyz-out", "", "whole-cell xyz export directory (default from config)")
	fs.IntVarP(&opts.Workers, "workers", "w", 1, "number of structures to featurize concurrently")

	return cmd
}

func runFeaturize(cmd *cobra.Command, opts *featurizeOptions, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	cfg := applyFeaturizeOverrides(cmd, cliCtx.Config, opts)

	files, err := collectStructureFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New(errors.ErrCodeValidation, "no CIF files found in the given paths")
	}

	backends, err := bootstrap.Build(cfg, cliCtx.Logger, nil)
	if err != nil {
		return err
	}
	defer backends.Close()

	service := featurization.NewService(backends.Deps)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		results []*featurization.Result
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			req := featurization.NewRequest(file, cfg)
			res, err := service.Featurize(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return PrintResult(cmd, featurizeSummary(results))
}

// applyFeaturizeOverrides copies the configuration and overlays every flag
// the user actually set, so config-file values survive unset flags.
func applyFeaturizeOverrides(cmd *cobra.Command, base *config.Config, opts *featurizeOptions) *config.Config {
	cfg := *base

	fs := cmd.Flags()
	if fs.Changed("depth") {
		cfg.Featurization.Depth = opts.Depth
	}
	if fs.Changed("wiggle-room") {
		cfg.Featurization.WiggleRoom = opts.WiggleRoom
	}
	if fs.Changed("max-atoms") {
		cfg.Featurization.MaxAtomCount = opts.MaxAtoms
	}
	if fs.Changed("graph-provided") {
		cfg.Featurization.GraphProvided = opts.GraphProvided
	}
	if fs.Changed("bond-info") {
		cfg.Featurization.EmitBondInfo = opts.BondInfo
	}
	if fs.Changed("surrounded-sbu") {
		cfg.Featurization.EmitSurroundedSBU = opts.SurroundedSBU
	}
	if fs.Changed("detect-rod") {
		cfg.Featurization.DetectRod = opts.DetectRod
	}
	if fs.Changed("out") {
		cfg.Output.Path = opts.OutputPath
	}
	if fs.Changed("xyz-out") {
		cfg.Output.XYZPath = opts.XYZPath
	}
	return &cfg
}

// collectStructureFiles expands the argument list into CIF file paths.
// Directories contribute the CIF files directly inside them, sorted by name.
func collectStructureFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeNotFound, "cannot access "+arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeNotFound, "cannot read directory "+arg)
		}
		var dirFiles []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(e.Name()), ".cif") {
				dirFiles = append(dirFiles, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(dirFiles)
		files = append(files, dirFiles...)
	}
	return files, nil
}

// featurizeSummary renders a batch of results for every output format.
type featurizeSummary []*featurization.Result

func (s featurizeSummary) TableHeaders() []string {
	return []string{"STRUCTURE", "STATUS", "CODE", "DESCRIPTORS", "CACHED"}
}

func (s featurizeSummary) TableRows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, r := range s {
		cached := ""
		if r.Cached {
			cached = "yes"
		}
		rows = append(rows, []string{
			r.Name,
			r.Status,
			r.Code,
			fmt.Sprintf("%d", len(r.Values)),
			cached,
		})
	}
	return rows
}

func (s featurizeSummary) String() string {
	var ok, failed, suspicious int
	for _, r := range s {
		switch r.Status {
		case featurization.StatusSuccess:
			ok++
		case featurization.StatusSuspicious:
			suspicious++
		default:
			failed++
		}
	}
	var sb strings.Builder
	for _, r := range s {
		if r.Code != "" {
			fmt.Fprintf(&sb, "%s: %s (%s)\n", r.Name, r.Status, r.Code)
		} else {
			fmt.Fprintf(&sb, "%s: %s (%d descriptors)\n", r.Name, r.Status, len(r.Values))
		}
	}
	fmt.Fprintf(&sb, "featurized %d structures: %d ok, %d suspicious, %d failed",
		len(s), ok, suspicious, failed)
	return sb.String()
}
