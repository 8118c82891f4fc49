package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderWithFooter(t *testing.T) {
	dataset := Dataset{
		Headers: []string{"Lender", "Volume"},
		Rows: []map[string]string{
			{"Lender": "Alpha", "Volume": "2"},
			{"Lender": "Beta", "Volume": "1"},
		},
		Footer: []map[string]string{
			{"Lender": "Total", "Volume": "3"},
		},
	}

	data, err := NewCSVExporter().Render(dataset)
	require.NoError(t, err)

	assert.Equal(t, "Lender,Volume\nAlpha,2\nBeta,1\n,\nTotal,3\n", string(data))
}

func TestCSVRenderMissingCellsAreBlank(t *testing.T) {
	dataset := Dataset{
		Headers: []string{"A", "B"},
		Rows:    []map[string]string{{"A": "x"}},
	}

	data, err := NewCSVExporter().Render(dataset)
	require.NoError(t, err)
	assert.Equal(t, "A,B\nx,\n", string(data))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
