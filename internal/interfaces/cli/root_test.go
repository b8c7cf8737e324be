package cli

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

// withCLIContext attaches a ready CLIContext to cmd, bypassing
// persistentPreRun for direct RunE tests.
func withCLIContext(cmd *cobra.Command, cfg *config.Config) {
	ctx := context.WithValue(context.Background(), cliContextKey{}, &CLIContext{
		Config:       cfg,
		Logger:       logging.NewNopLogger(),
		OutputFormat: "text",
	})
	cmd.SetContext(ctx)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["featurize"])
	assert.True(t, names["publish"])
	assert.True(t, names["search"])
	assert.True(t, names["migrate"])
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCommand()
	pf := root.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag %s", name)
	}
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{Use: "orphan"}
	_, err := GetCLIContext(cmd)
	require.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	require.Error(t, err)
}

func TestGetCLIContext_Present(t *testing.T) {
	cmd := &cobra.Command{Use: "cmd"}
	withCLIContext(cmd, testConfig())

	cliCtx, err := GetCLIContext(cmd)
	require.NoError(t, err)
	assert.Equal(t, "text", cliCtx.OutputFormat)
	assert.NotNil(t, cliCtx.Config)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(
		[]string{"STRUCTURE", "STATUS"},
		[][]string{
			{"HKUST-1", "success"},
			{"UiO-66", "failure"},
		},
	)

	assert.Contains(t, out, "STRUCTURE  STATUS")
	assert.Contains(t, out, "---------  ------")
	assert.Contains(t, out, "HKUST-1    success")
	assert.Contains(t, out, "UiO-66     failure")
}

func TestFormatTable_Empty(t *testing.T) {
	assert.Equal(t, "", FormatTable(nil, nil))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
