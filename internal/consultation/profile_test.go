package consultation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xaenox/astro-bot/internal/models"
)

func TestExtractProfile(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
		check func(t *testing.T, p models.UserProfile)
	}{
		{
			name:  "first message sets problem and life area",
			input: "I'm having trouble at my job",
			count: 0,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Equal(t, "I'm having trouble at my job", p.ProblemDetails)
				assert.Equal(t, "career", p.LifeArea)
				assert.Equal(t, "career", p.Concern)
				assert.Empty(t, p.Name)
			},
		},
		{
			name:  "later message leaves problem alone",
			input: "my marriage too",
			count: 2,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Empty(t, p.ProblemDetails)
				assert.Empty(t, p.LifeArea)
			},
		},
		{
			name:  "birth details",
			input: "I was born in Jaipur, Rajasthan on 12/04/1990 at 6:45 am",
			count: 1,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Equal(t, "I was born in Jaipur, Rajasthan on 12/04/1990 at 6:45 am", p.BirthDate)
				assert.Equal(t, "6:45 am", p.BirthTime)
				assert.Equal(t, "Jaipur, Rajasthan", p.BirthPlace)
			},
		},
		{
			name:  "birth year only",
			input: "My birth year is 1985",
			count: 1,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Equal(t, "My birth year is 1985", p.BirthDate)
			},
		},
		{
			name:  "number without birth mention",
			input: "I lost 2000 rupees",
			count: 1,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Empty(t, p.BirthDate)
			},
		},
		{
			name:  "name",
			input: "My name is Asha and I need help",
			count: 1,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Equal(t, "Asha", p.Name)
			},
		},
		{
			name:  "lowercase word is not a name",
			input: "I am worried",
			count: 1,
			check: func(t *testing.T, p models.UserProfile) {
				assert.Empty(t, p.Name)
			},
		},
		{
			name:  "timeframe and prior experience",
			input: "It has been like this since 2021 and an astrologer once told me to wait",
			count: 2,
			check: func(t *testing.T, p models.UserProfile) {
				assert.NotEmpty(t, p.Timeframe)
				assert.NotEmpty(t, p.PriorExperience)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ExtractProfile(models.UserProfile{}, tt.input, tt.count))
		})
	}
}

func TestExtractProfileOverwrites(t *testing.T) {
	p := ExtractProfile(models.UserProfile{Name: "Old"}, "i'm Ravi", 3)
	assert.Equal(t, "Ravi", p.Name)
}
