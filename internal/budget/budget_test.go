package budget

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	cases := []struct {
		name     string
		roas     float64
		slope    float64
		ppi      *float64
		proposed string
		action   Action
	}{
		{"unprofitable and declining defunds", 0.5, -1, nil, "0", ActionDefund},
		{"profitable and rising scales up", 2, 1, ptr(0), "120", ActionScaleUp},
		{"profitable but declining holds", 1.5, -1, ptr(0.1), "103", ActionHold},
		{"unprofitable but improving holds", 0.8, 0.5, nil, "100", ActionHold},
		{"break-even flat defunds", 1, 0, nil, "0", ActionDefund},
		{"defund plus profit term", 0.5, -1, ptr(2), "60", ActionDefund},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := Recommend(Input{
				CurrentBudget:              dec(100),
				AverageReturnRatio:         &tc.roas,
				TrendSlope:                 &tc.slope,
				AverageProfitPerImpression: tc.ppi,
			}, DefaultRules())
			require.True(t, ok)
			assert.True(t, rec.Proposed.Equal(decimal.RequireFromString(tc.proposed)), "proposed %s, want %s", rec.Proposed, tc.proposed)
			assert.Equal(t, tc.action, rec.Action)
		})
	}
}

func TestRecommendNeverNegative(t *testing.T) {
	for _, ppi := range []float64{-1000, -3.4, -0.01} {
		roas, slope := 0.2, -3.0
		rec, ok := Recommend(Input{
			CurrentBudget:              dec(250),
			AverageReturnRatio:         &roas,
			TrendSlope:                 &slope,
			AverageProfitPerImpression: &ppi,
		}, DefaultRules())
		require.True(t, ok)
		assert.False(t, rec.Proposed.IsNegative(), "ppi %v gave %s", ppi, rec.Proposed)
		assert.True(t, rec.Proposed.IsZero())
	}
}

func TestRecommendUnknownInputs(t *testing.T) {
	roas, slope := 2.0, 1.0

	_, ok := Recommend(Input{AverageReturnRatio: &roas, TrendSlope: &slope}, DefaultRules())
	assert.False(t, ok, "unknown budget")

	_, ok = Recommend(Input{CurrentBudget: dec(100), TrendSlope: &slope}, DefaultRules())
	assert.False(t, ok, "unknown roas")

	_, ok = Recommend(Input{CurrentBudget: dec(100), AverageReturnRatio: &roas}, DefaultRules())
	assert.False(t, ok, "unknown slope")

	inf := math.Inf(1)
	_, ok = Recommend(Input{CurrentBudget: dec(100), AverageReturnRatio: &inf, TrendSlope: &slope}, DefaultRules())
	assert.False(t, ok, "non-finite roas is treated as unknown")
}

func TestChangePct(t *testing.T) {
	pct, ok := ChangePct(decimal.NewFromInt(100), decimal.NewFromInt(120))
	require.True(t, ok)
	assert.True(t, pct.Equal(decimal.NewFromInt(20)))

	_, ok = ChangePct(decimal.Zero, decimal.NewFromInt(5))
	assert.False(t, ok)
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
	assert.Error(t, Rules{ROASThreshold: math.NaN()}.Validate())
	assert.Error(t, Rules{ROASThreshold: 1, ScaleUpFactor: -0.1}.Validate())
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func ptr(v float64) *float64 {
	return &v
}
