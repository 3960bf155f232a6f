package genai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analysis struct {
	NeedsFollowUp bool   `json:"needsFollowUp"`
	Category      string `json:"category"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"needsFollowUp": true, "category": "NEEDS_DEPTH"}`, "NEEDS_DEPTH", false},
		{"fenced", "```json\n{\"needsFollowUp\": false, \"category\": \"SUFFICIENT\"}\n```", "SUFFICIENT", false},
		{"prose around", `Sure! {"needsFollowUp": true, "category": "OFF_TRACK"} Hope that helps.`, "OFF_TRACK", false},
		{"braces in string", `{"needsFollowUp": true, "category": "a}b"}`, "a}b", false},
		{"no json", "I cannot answer that", "", true},
		{"broken json", `{"needsFollowUp": tru}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON[analysis](tt.raw, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestExtractJSON_Validator(t *testing.T) {
	validator := func(a analysis) error {
		if a.Category == "" {
			return errors.New("category required")
		}
		return nil
	}
	_, err := ExtractJSON[analysis](`{"needsFollowUp": true}`, validator)
	assert.ErrorIs(t, err, ErrInvalidOutput, "validation failure is wrapped")
}
