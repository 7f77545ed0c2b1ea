package utils

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"汉字转拼音", "张伟", "zhangwei"},
		{"英文名", "Mary Ann", "mary-ann"},
		{"混合", "李 Appraiser 2", "li-appraiser-2"},
		{"连续分隔符", "  Jo__Smith--Jr ", "jo-smith-jr"},
		{"忽略标点", "O'Brien, K.", "obrien-k"},
		{"空字符串", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResourceCode(tt.in))
		})
	}
}

func TestGenerateRandomResource(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	codePattern := regexp.MustCompile(`^[a-z]+[0-9]{2,4}$`)

	for i := 0; i < 50; i++ {
		res := GenerateRandomResource(rng, "example.com", []int64{1, 2, 3})

		assert.Regexp(t, codePattern, res.Code)
		assert.Equal(t, res.Code+"@example.com", res.Email)
		assert.Equal(t, domain.ResourceKindPerson, res.Kind)
		assert.True(t, res.IsBookable)
		require.NotEmpty(t, res.TerritoryIDs)
		require.NotNil(t, res.PrimaryTerritoryID)
		assert.True(t, res.ServesTerritory(*res.PrimaryTerritoryID))
		assert.GreaterOrEqual(t, res.MaxAppointmentsPerDay, int32(3))
	}
}

func TestGenerateRandomResourceWithoutTerritories(t *testing.T) {
	res := GenerateRandomResource(rand.New(rand.NewSource(1)), "example.com", nil)
	assert.Empty(t, res.TerritoryIDs)
	assert.Nil(t, res.PrimaryTerritoryID)
}

func TestGenerateRandomSubset(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	arr := []int64{1, 2, 3, 4, 5}

	for i := 0; i < 100; i++ {
		sub := GenerateRandomSubset(rng, arr)
		require.NotEmpty(t, sub)
		assert.LessOrEqual(t, len(sub), len(arr))
		for _, v := range sub {
			assert.Contains(t, arr, v)
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, arr)
}

func TestGenerateRandomVisitWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	loc := time.FixedZone("CST", -6*3600)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	for i := 0; i < 100; i++ {
		start, end := GenerateRandomVisitWindow(rng, day, loc)
		assert.Equal(t, day.Day(), start.Day())
		assert.GreaterOrEqual(t, start.Hour(), 8)
		assert.Contains(t, []int{0, 30}, start.Minute())
		d := end.Sub(start)
		assert.True(t, d >= time.Hour && d <= 3*time.Hour, "duration %s", d)
	}
}
