package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	rules, err := Load("")
	require.NoError(t, err)

	assert.Contains(t, rules.Keywords[domain.CategoryEarthquake], "earthquake")
	assert.InDelta(t, 7.0, rules.MagnitudeCritical, 1e-9)
	assert.Equal(t, 10000, rules.CasualtiesCritical)

	// Catch-alls sort last so ties resolve to specific categories.
	require.NotEmpty(t, rules.Priority)
	assert.Equal(t, domain.CategoryOther, rules.Priority[len(rules.Priority)-1])
	assert.Equal(t, domain.CategoryNaturalDisaster, rules.Priority[len(rules.Priority)-2])
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
magnitude_critical: 6.5
critical_terms: ["apocalyptic"]
keywords:
  WILDFIRE: ["megafire"]
`), 0o600))

	rules, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 6.5, rules.MagnitudeCritical, 1e-9)
	assert.Equal(t, []string{"apocalyptic"}, rules.CriticalTerms)
	assert.Equal(t, []string{"megafire"}, rules.Keywords[domain.CategoryWildfire])

	// Untouched tables keep their defaults.
	assert.Contains(t, rules.Keywords[domain.CategoryEarthquake], "earthquake")
	assert.NotEmpty(t, rules.HighTerms)
	assert.InDelta(t, 6.0, rules.MagnitudeHigh, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [not: a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
