package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credvault/pkg/domain-errors"
)

func TestSummarize_Bands(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   string
	}{
		{"high average is A", map[string]float64{"systems": 80, "coding": 90}, "A"},
		{"exact A threshold", map[string]float64{"systems": 75}, "A"},
		{"mid average is B", map[string]float64{"systems": 60, "coding": 70}, "B"},
		{"exact B threshold", map[string]float64{"systems": 60}, "B"},
		{"low average is C", map[string]float64{"systems": 40, "coding": 55}, "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Summarize(tt.scores, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Band)
		})
	}
}

func TestSummarize_Bullets(t *testing.T) {
	scores := map[string]float64{"systems": 88, "coding": 72, "communication": 65}

	t.Run("hints take priority", func(t *testing.T) {
		got, err := Summarize(scores, []string{"Shipped a distributed cache", "Mentors juniors"})
		require.NoError(t, err)
		require.Len(t, got.Bullets, 3)
		assert.Equal(t, "Shipped a distributed cache", got.Bullets[0])
		assert.Equal(t, "Mentors juniors", got.Bullets[1])
		assert.Contains(t, got.Bullets[2], "systems")
	})

	t.Run("fills from strongest dimensions", func(t *testing.T) {
		got, err := Summarize(scores, nil)
		require.NoError(t, err)
		require.Len(t, got.Bullets, 3)
		assert.Equal(t, "Strong performance in systems", got.Bullets[0])
		assert.Equal(t, "Solid performance in coding", got.Bullets[1])
	})

	t.Run("caps at three even with many hints", func(t *testing.T) {
		got, err := Summarize(scores, []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, got.Bullets)
	})

	t.Run("never includes raw scores", func(t *testing.T) {
		got, err := Summarize(scores, nil)
		require.NoError(t, err)
		for _, b := range got.Bullets {
			assert.NotContains(t, b, "88")
			assert.NotContains(t, b, "72")
		}
	})
}

func TestSummarize_Validation(t *testing.T) {
	_, err := Summarize(nil, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = Summarize(map[string]float64{"systems": 101}, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = Summarize(map[string]float64{"systems": -1}, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
