package hotpath

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, Busy, StatusFor(1, 0))
	assert.Equal(t, Away, StatusFor(1, 1))
	assert.Equal(t, Online, StatusFor(1, 2))
	assert.Equal(t, Online, StatusFor(3, 0))

	for vu := 1; vu <= 20; vu++ {
		for iter := 0; iter < 50; iter++ {
			s := StatusFor(vu, iter)
			assert.Contains(t, []string{"online", "busy", "away"}, s.String())
			assert.Equal(t, s, StatusFor(vu, iter))
			assert.Equal(t, statusCycle[(vu+iter)%3], s)
		}
	}
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(statusUpdateRequest{Status: Away, StatusNote: "n"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"away","status_note":"n"}`, string(b))
	assert.Equal(t, "unknown", Status(7).String())
}
