package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/MOFRAC-Engine/internal/bootstrap"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// publishOptions holds the publish command flags.
type publishOptions struct {
	Depth      int
	OutputPath string
}

// NewPublishCmd creates the publish subcommand, which enqueues featurization
// requests on the Kafka request topic for the batch worker to pick up.
func NewPublishCmd() *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish <structure.cif|dir> [...]",
		Short: "Enqueue structures for asynchronous featurization",
		Long: "Publish sends one featurization request per CIF file to the Kafka\n" +
			"request topic.  A running worker consumes the requests, runs the\n" +
			"pipeline, and emits completed/failed events.  Requires kafka.enabled.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, opts, args)
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&opts.Depth, "depth", "d", 0, "maximum autocorrelation hop distance (default from config)")
	fs.StringVar(&opts.OutputPath, "out", "", "worker-side output directory root (default from worker config)")

	return cmd
}

func runPublish(cmd *cobra.Command, opts *publishOptions, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if !cliCtx.Config.Kafka.Enabled {
		return errors.New(errors.ErrCodeValidation, "publish requires kafka.enabled in the configuration")
	}

	files, err := collectStructureFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New(errors.ErrCodeValidation, "no CIF files found in the given paths")
	}

	backends, err := bootstrap.Build(cliCtx.Config, cliCtx.Logger, nil)
	if err != nil {
		return err
	}
	defer backends.Close()

	ctx := cmd.Context()
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}

		payload := kafka.FeaturizationRequestedPayload{
			StructurePath: abs,
			Depth:         opts.Depth,
			OutputPath:    opts.OutputPath,
		}
		env, err := kafka.NewEventEnvelope("featurization.requested", "mofrac-cli", payload)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		msg, err := env.ToMessage(kafka.TopicFeaturizationRequested, name)
		if err != nil {
			return err
		}
		if err := backends.Producer.Publish(ctx, msg); err != nil {
			return err
		}

		cliCtx.Logger.Info("featurization request published",
			logging.String("structure", name),
			logging.String("path", abs),
		)
	}

	return PrintResult(cmd, fmt.Sprintf("published %d featurization requests", len(files)))
}
