package predictor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nb(category string, sim float64) Neighbor {
	return Neighbor{Category: category, Similarity: sim}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBestOfFilteredVote, p)

	p, err = ParsePolicy(" Weighted_Softmax ")
	require.NoError(t, err)
	assert.Equal(t, PolicyWeightedSoftmax, p)

	_, err = ParsePolicy("majority")
	assert.Error(t, err)
}

func TestBestOfFilteredVote(t *testing.T) {
	tests := []struct {
		name      string
		neighbors []Neighbor
		wantCat   string
		wantConf  float64
	}{
		{
			name:      "best below threshold is still surfaced",
			neighbors: []Neighbor{nb("餐饮", 0.6), nb("交通", 0.5)},
			wantCat:   "餐饮",
			wantConf:  0.6,
		},
		{
			name:      "unanimous filtered set uses max similarity",
			neighbors: []Neighbor{nb("餐饮", 0.9), nb("餐饮", 0.8), nb("交通", 0.5)},
			wantCat:   "餐饮",
			wantConf:  0.9,
		},
		{
			name:      "plurality uses vote share",
			neighbors: []Neighbor{nb("餐饮", 0.9), nb("购物", 0.85), nb("购物", 0.8), nb("餐饮", 0.6)},
			wantCat:   "购物",
			wantConf:  2.0 / 3.0,
		},
		{
			name:      "tie goes to first encountered",
			neighbors: []Neighbor{nb("餐饮", 0.9), nb("购物", 0.85)},
			wantCat:   "餐饮",
			wantConf:  0.5,
		},
		{
			name:      "threshold is inclusive for filtering",
			neighbors: []Neighbor{nb("餐饮", 0.7), nb("餐饮", 0.7)},
			wantCat:   "餐饮",
			wantConf:  0.7,
		},
		{
			name:      "negative similarity is clamped",
			neighbors: []Neighbor{nb("餐饮", -0.2)},
			wantCat:   "餐饮",
			wantConf:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, conf := Vote(PolicyBestOfFilteredVote, tt.neighbors, 0.7, 10)
			assert.Equal(t, tt.wantCat, cat)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
		})
	}
}

func TestWeightedSoftmax(t *testing.T) {
	neighbors := []Neighbor{nb("餐饮", 0.9), nb("餐饮", 0.8), nb("交通", 0.7)}
	want := 1 / (1 + math.Exp(-1.0)) // sums 1.7 vs 0.7

	cat, conf := Vote(PolicyWeightedSoftmax, neighbors, 0.7, 3)
	assert.Equal(t, "餐饮", cat)
	assert.InDelta(t, want, conf, 1e-9)

	// 1.7 does not exceed 0.9 * 2, so the category is withheld but the
	// confidence is still reported.
	cat, conf = Vote(PolicyWeightedSoftmax, neighbors, 0.9, 3)
	assert.Empty(t, cat)
	assert.InDelta(t, want, conf, 1e-9)
}

func TestWeightedSoftmaxLargeSums(t *testing.T) {
	neighbors := make([]Neighbor, 0, 2000)
	for i := 0; i < 1000; i++ {
		neighbors = append(neighbors, nb("餐饮", 1), nb("交通", 0.9))
	}
	cat, conf := Vote(PolicyWeightedSoftmax, neighbors, 0.1, len(neighbors))
	assert.Equal(t, "餐饮", cat)
	assert.False(t, math.IsNaN(conf))
	assert.InDelta(t, 1.0, conf, 1e-9)
}

func TestSingleNearestBoundary(t *testing.T) {
	cat, conf := Vote(PolicySingleNearest, []Neighbor{nb("餐饮", 0.7)}, 0.7, 1)
	assert.Equal(t, "餐饮", cat)
	assert.InDelta(t, 0.7, conf, 1e-9)

	cat, conf = Vote(PolicySingleNearest, []Neighbor{nb("餐饮", 0.69)}, 0.7, 1)
	assert.Empty(t, cat)
	assert.Zero(t, conf)
}

func TestVoteEmptyNeighbors(t *testing.T) {
	for _, p := range Policies {
		cat, conf := Vote(p, nil, 0.7, 10)
		assert.Empty(t, cat, string(p))
		assert.Zero(t, conf, string(p))
	}
}

func TestComposer(t *testing.T) {
	q := Query{Merchant: "星巴克", Product: "咖啡", PaymentMethod: "支付宝", Direction: "支出"}
	assert.Equal(t, "星巴克:咖啡", Composer{}.Compose(q))
	assert.Equal(t, "星巴克:咖啡", Composer{Format: FormatBasic}.Compose(q))
	assert.Equal(t, "星巴克:咖啡:支付宝:支出", Composer{Format: FormatExtended}.Compose(q))
	assert.Equal(t, ":", Composer{}.Compose(Query{}))

	f, err := ParseDocumentFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatBasic, f)
	_, err = ParseDocumentFormat("verbose")
	assert.Error(t, err)
}
