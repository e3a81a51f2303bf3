package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuery_Threshold(t *testing.T) {
	tests := []struct {
		question string
		want     float64
		ok       bool
	}{
		{"載重250kg以上的擔架床有哪些選擇", 250, true},
		{"承重 300 公斤 的推床", 300, true},
		{"Load limit at least 1.5 KG", 1.5, true},
		{"load limit over 1,000 kg", 1000, true},
		{"load limit of the cot", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			q := newQuery(tt.question, nil)
			assert.Equal(t, tt.ok, q.hasLimit)
			assert.InDelta(t, tt.want, q.threshold, 1e-9)
		})
	}
}

func TestBareNumber(t *testing.T) {
	assert.Equal(t, "35", bareNumber("≥250kg and model 35"))
	assert.Equal(t, "35", bareNumber("35型 擔架"))
	assert.Equal(t, "", bareNumber("90° backrest"))
	assert.Equal(t, "", bareNumber("300 kg stretcher"))
	assert.Equal(t, "", bareNumber("no digits"))
}

func TestMaxKg(t *testing.T) {
	v, ok := maxKg("load limit 295 kg / 650 lbs / max 318kg")
	require.True(t, ok)
	assert.Equal(t, 318.0, v)

	_, ok = maxKg("650 lbs")
	assert.False(t, ok)

	v, ok = maxKg("bariatric stretcher, load limit 1,200 kg (2,645 lbs)")
	require.True(t, ok)
	assert.Equal(t, 1200.0, v)
}

func TestIntents(t *testing.T) {
	assert.Equal(t, []Intent{IntentSpecification, IntentLoadLimit}, Intents("載重250kg以上的擔架床有哪些選擇"))
	assert.Equal(t, []Intent{IntentSpecification}, Intents("規格"))
	assert.Equal(t, []Intent{IntentFeature, IntentBrand}, Intents("Ferno cot features"))
	assert.Equal(t, []Intent{IntentAngle}, Intents("背靠角度"))
	assert.Equal(t, []Intent{IntentModelNumber}, Intents("tell me about 35"))
	assert.Empty(t, Intents("oxygen"))
}

func TestBonus(t *testing.T) {
	tests := []struct {
		name     string
		question string
		content  string
		want     float64
	}{
		{
			name:     "spec evidence stacks",
			question: "規格",
			content:  "SPECIFICATIONS\nImperial Metric\nLength 200 mm",
			want:     0.35 + 0.20 + 0.15,
		},
		{
			name:     "load limit without threshold",
			question: "what is the load limit",
			content:  "Load Limit 150 kg",
			want:     0.15 + 0.20 + 0.25 + 0.10,
		},
		{
			name:     "max load phrase",
			question: "承重多少",
			content:  "最大載重 150 kg",
			want:     0.15 + 0.25 + 0.10,
		},
		{
			name:     "threshold met",
			question: "載重250kg以上",
			content:  "Load Limit 295 KG",
			want:     0.15 + 0.45 + 0.20,
		},
		{
			name:     "threshold missed is penalized",
			question: "載重250kg以上",
			content:  "Load Limit 180 KG",
			want:     0.15 - 0.15 + 0.20,
		},
		{
			name:     "threshold with no kg in content",
			question: "載重250kg以上",
			content:  "Load Limit 650 lbs",
			want:     0.15 + 0.20,
		},
		{
			name:     "feature conditions add up",
			question: "產品特點",
			content:  "▪ converts to a chair\n● big wheels",
			want:     0.20 + 0.20 + 0.20,
		},
		{
			name:     "angle",
			question: "backrest angle range",
			content:  "Backrest 0-75°",
			want:     0.30,
		},
		{
			name:     "brand hint",
			question: "ferno cots",
			content:  "FERNO Model",
			want:     0.10,
		},
		{
			name:     "no intent",
			question: "oxygen",
			content:  "Load Limit 150 kg SPECIFICATIONS",
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQuery(tt.question, DefaultBrands)
			assert.InDelta(t, tt.want, q.bonus(tt.content), 1e-9)
		})
	}
}

func TestModelNumberBonus(t *testing.T) {
	q := newQuery("model 35 details", nil)
	require.Equal(t, "35", q.number)

	tests := []struct {
		content string
		want    float64
	}{
		{"Model 35-X cot", 0.25},
		{"MODEL NO. 35", 0.25},
		{"35型 擔架", 0.20},
		{"35 型 擔架", 0.20},
		{"size 35 cm", 0.10},
		{"model 350", -0.05},
		{"nothing relevant", -0.05},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.InDelta(t, tt.want, modelNumberBonus(q, strings.ToLower(tt.content)), 1e-9)
		})
	}
}
