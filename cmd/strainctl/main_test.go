package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/reconcile"
)

const sampleYAML = `strainTree:
  name: Brokkr Genetics
  children:
    - name: Anvil Series
      children:
        - name: Iron Kush
          children:
            - name: "Iron Kush #2"
              children:
                - name: Rust
            - name: Slag
        - name: Hammer
    - name: Forge Collection
      children:
        - name: Bellows
          children:
            - name: Ember
            - name: Ash
    - name: Heirloom Treasures
strains:
  - name: Hammer
    description: Dense and resinous.
  - name: Iron Kush
    description: Earthy and heavy.
`

func writeData(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateReportsShape(t *testing.T) {
	path := writeData(t, "straindata.yaml", sampleYAML)
	out, err := execute(t, "validate", "--data", path)
	require.NoError(t, err)

	assert.Contains(t, out, "root:         Brokkr Genetics")
	assert.Contains(t, out, "nodes:        12")
	assert.Contains(t, out, "leaves:       6")
	assert.Contains(t, out, "groupings:    5")
	assert.Contains(t, out, "described:    2")
	assert.Contains(t, out, "descriptions: 2")
}

func TestValidateMissingSourceExitsOne(t *testing.T) {
	_, err := execute(t, "validate", "--data", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestValidateMalformedExitsOne(t *testing.T) {
	path := writeData(t, "bad.json", `{"strains": []}`)
	_, err := execute(t, "validate", "--data", path)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestRenderSVG(t *testing.T) {
	path := writeData(t, "straindata.yaml", sampleYAML)
	out, err := execute(t, "render", "--data", path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `<svg class="genetics-tree-svg"`))
	assert.Equal(t, 7, strings.Count(out, "data-node-id="))
	assert.NotContains(t, out, "hx-post")

	out, err = execute(t, "render", "--data", path, "--expand-all")
	require.NoError(t, err)
	assert.Equal(t, 12, strings.Count(out, "data-node-id="))
}

func TestRenderJSON(t *testing.T) {
	path := writeData(t, "straindata.yaml", sampleYAML)
	out, err := execute(t, "render", "--data", path, "--format", "json", "--width", "500", "--height", "400")
	require.NoError(t, err)

	var frame reconcile.Frame
	require.NoError(t, json.Unmarshal([]byte(out), &frame))
	assert.Len(t, frame.Visible(), 7)
	assert.Equal(t, 500, frame.Viewport.Width)
	assert.Equal(t, float64(20), frame.Margins.Left)
}

func TestRenderFetchErrorPrintsInlineMessage(t *testing.T) {
	out, err := execute(t, "render", "--data", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, out, navigator.LoadErrorMessage)
	assert.Equal(t, 1, exitCode(err))
}

func TestRenderLevelSpacing(t *testing.T) {
	path := writeData(t, "straindata.yaml", sampleYAML)
	out, err := execute(t, "render", "--data", path, "--format", "json", "--level-spacing", "100")
	require.NoError(t, err)

	var frame reconcile.Frame
	require.NoError(t, json.Unmarshal([]byte(out), &frame))
	for _, n := range frame.Visible() {
		assert.InDelta(t, float64(n.Depth)*100, n.To.X, 1e-9, n.Name)
	}
}

func TestBrowseTitle(t *testing.T) {
	title, err := browseTitle("", "en")
	require.NoError(t, err)
	assert.Equal(t, "Genetics", title)

	title, err = browseTitle("", "ja")
	require.NoError(t, err)
	assert.Equal(t, "ジェネティクス", title)

	title, err = browseTitle("", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Genetics", title)

	title, err = browseTitle("Brokkr", "ja")
	require.NoError(t, err)
	assert.Equal(t, "Brokkr", title)
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	path := writeData(t, "straindata.yaml", sampleYAML)
	_, err := execute(t, "render", "--data", path, "--format", "png")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(errors.New("boom")))
}
