package enhance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseDirectJSON(t *testing.T) {
	resp, err := ParseResponse(`{
		"truncated": true,
		"description": "Config loader with two helpers.",
		"business_impact": "Low - simple utility file",
		"architectural_concerns": ["None"],
		"enhanced_suggestions": {"style_abc123": "Use a named constant."}
	}`)
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Equal(t, "Config loader with two helpers.", resp.Description)
	assert.Equal(t, "Low - simple utility file", resp.BusinessImpact)
	assert.Equal(t, []string{"None"}, resp.ArchitecturalConcerns)
	assert.Equal(t, "Use a named constant.", resp.Suggestions["style_abc123"])
}

func TestParseResponseCodeFenced(t *testing.T) {
	resp, err := ParseResponse("```json\n{\"truncated\": false, \"description\": \"d\"}\n```")
	require.NoError(t, err)
	assert.False(t, resp.Truncated)
	assert.Equal(t, "d", resp.Description)
}

func TestParseResponseFenceWithoutLanguage(t *testing.T) {
	resp, err := ParseResponse("```\n{\"truncated\": true, \"description\": \"x\"}\n```")
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
}

func TestParseResponseTrailingComma(t *testing.T) {
	resp, err := ParseResponse(`{"truncated": false, "description": "d",}`)
	require.NoError(t, err)
	assert.Equal(t, "d", resp.Description)
}

func TestParseResponseMixedContent(t *testing.T) {
	resp, err := ParseResponse(`Here is my analysis:
{"truncated": false, "business_impact": "Medium"}
Let me know if you need more detail.`)
	require.NoError(t, err)
	assert.Equal(t, "Medium", resp.BusinessImpact)
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	_, err := ParseResponse("I could not analyze this file.")
	assert.Error(t, err)

	_, err = ParseResponse("")
	assert.Error(t, err)

	_, err = ParseResponse("{\"truncated\": ")
	assert.Error(t, err)
}

func TestParseResponseMissingFieldsDefaultToZero(t *testing.T) {
	resp, err := ParseResponse(`{"description": "only a description"}`)
	require.NoError(t, err)
	assert.False(t, resp.Truncated)
	assert.Empty(t, resp.BusinessImpact)
	assert.Nil(t, resp.Suggestions)
}
