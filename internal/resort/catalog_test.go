package resort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Greater(t, c.Len(), 0)

	r, ok := c.Get("zermatt")
	require.True(t, ok)
	assert.Equal(t, "CH", r.Country)
	assert.Equal(t, 3883-1620, r.Vertical())

	assert.True(t, c.Has("vail"))
	assert.False(t, c.Has("nowhere"))
}

func TestAllSortedByName(t *testing.T) {
	all := Default().All()
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Name, all[i].Name)
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte("resorts:\n  - id: a\n    name: A\n  - id: a\n    name: B\n"))
	assert.Error(t, err)
}

func TestParseRejectsMissingID(t *testing.T) {
	_, err := Parse([]byte("resorts:\n  - name: Nameless\n"))
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("resorts: [\n"))
	assert.Error(t, err)
}
