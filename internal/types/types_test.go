package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioValid(t *testing.T) {
	for _, s := range []Scenario{ScenarioSummary, ScenarioExtract, ScenarioImage, ScenarioQuickNote, ScenarioSelection} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Scenario("video").Valid())
	assert.False(t, Scenario("").Valid())
}

func TestScenarioFor(t *testing.T) {
	assert.Equal(t, ScenarioExtract, ScenarioFor(true))
	assert.Equal(t, ScenarioSummary, ScenarioFor(false))
}

func TestOperationStateWireShape(t *testing.T) {
	data, err := json.Marshal(OperationState{Status: StatusNone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"none"}`, string(data))

	data, err = json.Marshal(OperationState{Status: StatusCompleted, Summary: "S", URL: "https://x", Title: "T"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed","summary":"S","url":"https://x","title":"T"}`, string(data))
}
