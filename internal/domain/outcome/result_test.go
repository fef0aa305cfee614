package outcome

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapped(t *testing.T) {
	r := Capped(3)
	assert.False(t, r.Success)
	assert.Equal(t, ReasonQuantityCapped, r.Reason)
	assert.Equal(t, Rejected, r.Outcome)
	require.NotNil(t, r.SuggestedQuantity)
	assert.Equal(t, 3, *r.SuggestedQuantity)
	assert.Contains(t, r.Error, "3")
}

func TestWarning(t *testing.T) {
	assert.True(t, LocallyOnly("device only").Warning())
	assert.False(t, Ok().Warning())
	assert.False(t, RollBack(ReasonPersistenceFailure, "failed").Warning())
}

func TestRetryable(t *testing.T) {
	assert.True(t, ReasonConflict.Retryable())
	assert.True(t, ReasonPersistenceFailure.Retryable())
	assert.False(t, ReasonUsageLimitReached.Retryable())
	assert.False(t, ReasonOutOfStock.Retryable())
}

func TestResultJSON(t *testing.T) {
	raw, err := json.Marshal(Ok())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"outcome":"applied"}`, string(raw))

	raw, err = json.Marshal(Capped(2))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(2), body["suggestedQuantity"])
	assert.Equal(t, "QuantityCapped", body["reason"])
	assert.Equal(t, "rejected", body["outcome"])
}
