package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
)

// twoLinkerCIF is two Cu centers bridged by two three-carbon chains, one of
// them closing through the periodic boundary, so the full pipeline runs to
// completion.
const twoLinkerCIF = `data_twolinker
_cell_length_a 10.0
_cell_length_b 10.0
_cell_length_c 10.0
_cell_angle_alpha 90.0
_cell_angle_beta 90.0
_cell_angle_gamma 90.0
loop_
_atom_site_label
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
Cu1 0.10 0.50 0.50
Cu2 0.60 0.50 0.50
C1 0.22 0.50 0.50
C2 0.35 0.50 0.50
C3 0.48 0.50 0.50
C4 0.72 0.50 0.50
C5 0.85 0.50 0.50
C6 0.98 0.50 0.50
`

func writeCIF(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectStructureFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeCIF(t, dir, "a.cif", "data_a\n")
	b := writeCIF(t, dir, "B.CIF", "data_b\n")
	writeCIF(t, dir, "notes.txt", "not a structure")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := collectStructureFiles([]string{dir})
	require.NoError(t, err)
	// Sorted by name within the directory; extension match is case-insensitive.
	assert.Equal(t, []string{b, a}, files)
}

func TestCollectStructureFiles_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCIF(t, dir, "x.cif", "data_x\n")

	files, err := collectStructureFiles([]string{path, path})
	require.NoError(t, err)
	assert.Equal(t, []string{path, path}, files)
}

func TestCollectStructureFiles_Missing(t *testing.T) {
	_, err := collectStructureFiles([]string{"/does/not/exist.cif"})
	require.Error(t, err)
}

func TestApplyFeaturizeOverrides(t *testing.T) {
	cmd := NewFeaturizeCmd()
	require.NoError(t, cmd.Flags().Set("depth", "2"))
	require.NoError(t, cmd.Flags().Set("out", "/tmp/mofrac-out"))

	base := testConfig()
	opts := &featurizeOptions{Depth: 2, OutputPath: "/tmp/mofrac-out"}

	cfg := applyFeaturizeOverrides(cmd, base, opts)
	assert.Equal(t, 2, cfg.Featurization.Depth)
	assert.Equal(t, "/tmp/mofrac-out", cfg.Output.Path)

	// Unset flags keep the base values.
	assert.Equal(t, base.Featurization.WiggleRoom, cfg.Featurization.WiggleRoom)
	assert.Equal(t, base.Output.XYZPath, cfg.Output.XYZPath)

	// The base config is not mutated.
	assert.NotEqual(t, 2, base.Featurization.Depth)
}

func TestFeaturizeSummary_Render(t *testing.T) {
	s := featurizeSummary{
		{Name: "HKUST-1", Status: featurization.StatusSuccess, Values: []float64{1, 2, 3}},
		{Name: "broken", Status: featurization.StatusFailure, Code: "STRUCT_001", Names: []string{"0"}, Values: []float64{0}},
	}

	rows := s.TableRows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"HKUST-1", "success", "", "3", ""}, rows[0])
	assert.Equal(t, []string{"broken", "failure", "STRUCT_001", "1", ""}, rows[1])

	text := s.String()
	assert.Contains(t, text, "HKUST-1: success (3 descriptors)")
	assert.Contains(t, text, "broken: failure (STRUCT_001)")
	assert.Contains(t, text, "featurized 2 structures: 1 ok, 0 suspicious, 1 failed")
}

// TestFeaturizeCommand_EndToEnd drives the whole command through cobra with
// a real structure and no optional backends.
func TestFeaturizeCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cifPath := writeCIF(t, dir, "twolinker.cif", twoLinkerCIF)
	outDir := filepath.Join(dir, "out")

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"featurize", cifPath, "--out", outDir, "--output", "json"})

	require.NoError(t, root.Execute())

	var results []*featurization.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "twolinker", results[0].Name)
	assert.Equal(t, featurization.StatusSuccess, results[0].Status)
	assert.NotEmpty(t, results[0].Values)

	// The output layout was created alongside the descriptor tables.
	_, err := os.Stat(filepath.Join(outDir, "sbu_descriptors.csv"))
	assert.NoError(t, err)
}

func TestFeaturizeCommand_NoFiles(t *testing.T) {
	dir := t.TempDir()

	cmd := NewFeaturizeCmd()
	withCLIContext(cmd, testConfig())
	err := cmd.RunE(cmd, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CIF files")
}
