package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageResponsesUnmarshalPreservesOrder(t *testing.T) {
	var r StageResponses
	data := []byte(`{"Q3_SPECIFIC_MOMENT":"b","Q1_EXPLORATION":"a","FOLLOWUP":"c"}`)
	require.NoError(t, json.Unmarshal(data, &r))

	want := []Stage{StageSpecificMoment, StageExploration, StageFollowUp}
	require.Len(t, r, len(want))
	for i, s := range want {
		assert.Equal(t, s, r[i].Stage, "entry %d", i)
	}
	assert.True(t, r.FollowUpUsed())
}

func TestStageResponsesMarshalKeepsOrder(t *testing.T) {
	r := StageResponses{}.
		Set(StageDilemma, "x").
		Set(StageExploration, "y")
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Q4_DILEMMA":"x","Q1_EXPLORATION":"y"}`, string(out))
}

func TestStageResponsesSetReplacesInPlace(t *testing.T) {
	base := StageResponses{}.Set(StageExploration, "a").Set(StageSelection, "b")
	updated := base.Set(StageExploration, "c")

	got, _ := updated.Get(StageExploration)
	assert.Equal(t, "c", got)
	assert.Equal(t, StageExploration, updated[0].Stage, "key order unchanged")
	assert.Equal(t, StageSelection, updated[1].Stage, "key order unchanged")
	orig, _ := base.Get(StageExploration)
	assert.Equal(t, "a", orig, "receiver unchanged")
}

func TestStageResponsesUnmarshalRejectsNonStrings(t *testing.T) {
	var r StageResponses
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"Q1_EXPLORATION": 3}`), &r), ErrResponsesShape)
	assert.ErrorIs(t, json.Unmarshal([]byte(`["Q1_EXPLORATION"]`), &r), ErrResponsesShape, "array")
}

func TestStageResponsesNull(t *testing.T) {
	r := StageResponses{{Stage: StageExploration, Answer: "a"}}
	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.Nil(t, r)
}

func TestConversationStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		conv    ConversationState
		wantErr error
	}{
		{"valid", NewConversationState(PromptChallenge), nil},
		{"missing prompt", ConversationState{CurrentStage: StageExploration}, ErrMissingPrompt},
		{"missing stage", ConversationState{PromptID: PromptBelief}, ErrMissingStage},
		{"unknown stage", ConversationState{PromptID: PromptBelief, CurrentStage: "Q9"}, ErrInvalidStage},
		{"bad role", ConversationState{
			PromptID:     PromptBelief,
			CurrentStage: StageSelection,
			Messages:     []Message{{Role: "system", Content: "x"}},
		}, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conv.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConversationStateCloneDoesNotAlias(t *testing.T) {
	c := NewConversationState(PromptIdentity)
	c.Messages = append(c.Messages, Message{Role: RoleUser, Content: "hi"})
	c.StudentResponses = c.StudentResponses.Set(StageExploration, "hi")

	clone := c.Clone()
	clone.Messages[0].Content = "changed"
	clone.StudentResponses[0].Answer = "changed"

	assert.Equal(t, "hi", c.Messages[0].Content)
	assert.Equal(t, "hi", c.StudentResponses[0].Answer)
}

func TestLookupPrompt(t *testing.T) {
	_, ok := LookupPrompt(PromptChoice)
	assert.True(t, ok)
	_, ok = LookupPrompt("nope")
	assert.False(t, ok)
	assert.Len(t, EssayPrompts(), 4)
}

func TestErrorResponseBuilder(t *testing.T) {
	resp := Error("boom")
	assert.Equal(t, string(APIStatusError), resp.Status)
	assert.Equal(t, "boom", resp.Message)

	ok := SuccessWithMessage("done", 3)
	assert.Equal(t, string(APIStatusOK), ok.Status)
	assert.Equal(t, 3, ok.Result)
}
