package repository

import (
	"testing"

	"lotorder-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Smith Honda", "smith_honda"},
		{"apostrophe", "O'Brien's Ford", "o_brien_s_ford"},
		{"ampersand", "Smith & Sons Chevrolet", "smith_sons_chevrolet"},
		{"surrounding junk", "  --Valley Toyota--  ", "valley_toyota"},
		{"digits", "Route 66 Motors", "route_66_motors"},
		{"only punctuation", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestNewPartitionRegistry(t *testing.T) {
	configs := []model.DealershipConfig{
		{ID: 1, Name: "Smith Honda"},
		{ID: 2, Name: "Valley Toyota"},
	}

	reg, err := NewPartitionRegistry(configs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	table, ok := reg.TableFor(1)
	require.True(t, ok)
	assert.Equal(t, "vin_history_smith_honda", table)

	_, ok = reg.TableFor(99)
	assert.False(t, ok)
}

func TestNewPartitionRegistry_overridesWin(t *testing.T) {
	configs := []model.DealershipConfig{{ID: 12, Name: "O'Brien's Ford"}}

	reg, err := NewPartitionRegistry(configs, map[int64]string{12: "obriens_ford"})
	require.NoError(t, err)

	table, ok := reg.TableFor(12)
	require.True(t, ok)
	assert.Equal(t, "vin_history_obriens_ford", table)
}

func TestNewPartitionRegistry_duplicateSlugFails(t *testing.T) {
	configs := []model.DealershipConfig{
		{ID: 1, Name: "Smith Honda"},
		{ID: 2, Name: "SMITH HONDA"},
	}
	_, err := NewPartitionRegistry(configs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smith_honda")
}

func TestNewPartitionRegistry_emptySlugFails(t *testing.T) {
	_, err := NewPartitionRegistry([]model.DealershipConfig{{ID: 3, Name: "***"}}, nil)
	require.Error(t, err)
}
