package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
)

func TestNormalizeInfersMissingStatus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want domain.Status
	}{
		{"empty content", `{"answer":"","citations":[]}`, domain.StatusInsufficientContext},
		{"no fields", `{}`, domain.StatusInsufficientContext},
		{"answer only", `{"answer":"Adam with warmup."}`, domain.StatusOK},
		{"citations only", `{"citations":[{"label":"Paper","locator":"page 2"}]}`, domain.StatusOK},
		{"error key", `{"error":"boom"}`, domain.StatusError},
		{"error in content", `{"answer":"Error while searching"}`, domain.StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw).Status)
		})
	}
}

func TestNormalizeKeepsExplicitStatusAndExtras(t *testing.T) {
	r := Normalize(`{"status":"INSUFFICIENT_CONTEXT","answer":"the error rate is 3%","confidence":0.2,"context":"chunk"}`)
	assert.Equal(t, domain.StatusInsufficientContext, r.Status)
	assert.Equal(t, 0.2, r.Confidence)
	assert.Equal(t, "chunk", r.Extra["context"])
}

func TestNormalizeText(t *testing.T) {
	r := Normalize("Request FAILED after 3 attempts")
	assert.Equal(t, domain.StatusError, r.Status)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, "Request FAILED after 3 attempts", r.Extra["error"])

	r = Normalize("Transformers use attention.")
	assert.Equal(t, domain.StatusOK, r.Status)
	assert.Equal(t, 0.5, r.Confidence)
	assert.Equal(t, domain.TagUnknown, r.SourceUsed)
	assert.NotNil(t, r.Citations)
}

func TestNormalizeTreatsJSONArrayAsText(t *testing.T) {
	r := Normalize(`["a","b"]`)
	assert.Equal(t, domain.StatusOK, r.Status)
	assert.Equal(t, `["a","b"]`, r.Answer)
}

func TestNormalizeKeepsMistypedFields(t *testing.T) {
	r := Normalize(`{"status":"OK","answer":"a","confidence":"0.8",
		"citations":[{"label":"x","locator":"p1"},"Smith 2020, p.4"]}`)
	assert.Equal(t, domain.StatusOK, r.Status)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
	assert.Equal(t, []domain.Citation{{Label: "x", Locator: "p1"}, {Label: "Smith 2020, p.4"}}, r.Citations)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "0.8", back["confidence"])
	assert.Equal(t, []any{
		map[string]any{"label": "x", "locator": "p1"},
		"Smith 2020, p.4",
	}, back["citations"])
	assert.Equal(t, "OK", back["status"])
}

func TestNormalizeInfersNonStringStatus(t *testing.T) {
	r := Normalize(`{"status":1,"answer":"Adam.","missing":["dataset",2]}`)
	assert.Equal(t, domain.StatusOK, r.Status)
	assert.Equal(t, []string{"dataset"}, r.Missing)

	back := r.Map()
	assert.Equal(t, "OK", back["status"])
	assert.Equal(t, float64(1), back[domain.RawStatusKey])
	assert.Equal(t, []any{"dataset", float64(2)}, back["missing"])

	assert.Equal(t, domain.StatusInsufficientContext, Normalize(`{"status":"insufficient_context"}`).Status)
	assert.Equal(t, domain.StatusInsufficientContext, Normalize(`{"status":"maybe"}`).Status)
}
