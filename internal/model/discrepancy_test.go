package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestParseResolutionRejectsUnresolved(t *testing.T) {
    for _, valid := range []string{"ignored", "platform_updated", "manual_review"} {
        state, ok := ParseResolution(valid)
        assert.True(t, ok, valid)
        assert.True(t, state.Terminal())
    }
    for _, invalid := range []string{"unresolved", "", "resolved", "IGNORED"} {
        _, ok := ParseResolution(invalid)
        assert.False(t, ok, invalid)
    }
}

func TestSeverityRankOrdering(t *testing.T) {
    assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
    assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
    assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
    assert.Greater(t, SeverityLow.Rank(), Severity("bogus").Rank())
}

func TestParsePlatform(t *testing.T) {
    p, err := ParsePlatform("humanitix")
    assert.NoError(t, err)
    assert.True(t, p.Reconcilable())

    p, err = ParsePlatform("manual")
    assert.NoError(t, err)
    assert.False(t, p.Reconcilable(), "manual sales have no external source of truth")

    _, err = ParsePlatform("ticketek")
    assert.Error(t, err)
}

func TestParseAdjustmentType(t *testing.T) {
    for _, valid := range []string{"add_sale", "remove_sale", "update_amount"} {
        _, ok := ParseAdjustmentType(valid)
        assert.True(t, ok, valid)
    }
    _, ok := ParseAdjustmentType("void_sale")
    assert.False(t, ok)
}
