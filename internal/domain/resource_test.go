package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServesTerritory(t *testing.T) {
	res := &Resource{TerritoryIDs: []int64{3, 7}}

	tests := []struct {
		name   string
		id     int64
		expect bool
	}{
		{"服务的区域", 7, true},
		{"未服务的区域", 4, false},
		{"零值", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, res.ServesTerritory(tt.id))
		})
	}

	assert.False(t, (&Resource{}).ServesTerritory(3))
}
