package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/EssayPipe/internal/models"
	"github.com/BTreeMap/EssayPipe/internal/testutil"
)

type sessionEnvelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Result  models.Session `json:"result"`
}

type turnEnvelope struct {
	Status string `json:"status"`
	Result struct {
		Session models.Session         `json:"session"`
		Turn    map[string]interface{} `json:"turn"`
	} `json:"result"`
}

func createSession(t *testing.T, s *Server, promptID models.PromptID) models.Session {
	t.Helper()
	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions", models.CreateSessionRequest{PromptID: promptID}))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create session")
	var env sessionEnvelope
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	return env.Result
}

func sessionTurn(t *testing.T, s *Server, id string, answer *string) (int, turnEnvelope) {
	t.Helper()
	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+id+"/turn", models.SessionTurnRequest{UserResponse: answer}))
	var env turnEnvelope
	if rr.Code == http.StatusOK {
		testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	}
	return rr.Code, env
}

func TestCreateSession(t *testing.T) {
	s, st, _ := newTestServer(t, nil)
	sess := createSession(t, s, models.PromptIdentity)

	require.NotEmpty(t, sess.ID)
	require.Equal(t, models.StageExploration, sess.Conversation.CurrentStage)
	_, err := st.GetSession(sess.ID)
	require.NoError(t, err, "session not stored")

	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions", `{"promptId":"nope"}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "create with bad prompt")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestGetListDeleteSession(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	sess := createSession(t, s, models.PromptBelief)

	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/sessions/"+sess.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list sessions")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodDelete, "/api/sessions/"+sess.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete session")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/sessions/"+sess.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get deleted session")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodDelete, "/api/sessions/"+sess.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "delete missing session")
}

func TestSessionTurn_QuestionIsRecordedOnce(t *testing.T) {
	collab := testutil.NewFakeCollaborator()
	s, _, _ := newTestServer(t, collab)
	sess := createSession(t, s, models.PromptChallenge)

	code, env := sessionTurn(t, s, sess.ID, nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "first question")
	assert.Equal(t, "Question for Q1_EXPLORATION?", env.Result.Turn["question"])
	require.Len(t, env.Result.Session.Conversation.Messages, 1)

	code, env = sessionTurn(t, s, sess.ID, nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "repeat question")
	assert.Len(t, env.Result.Session.Conversation.Messages, 1, "repeated question must not duplicate the message")
	assert.Equal(t, 1, collab.QuestionCalls, "cached question should skip the generator")
}

func TestSessionTurn_FollowUpThenAdvance(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.NewFakeCollaborator())
	sess := createSession(t, s, models.PromptChallenge)

	_, env := sessionTurn(t, s, sess.ID, strPtr(longAnswer))
	require.Equal(t, models.StageSelection, env.Result.Session.Conversation.CurrentStage)

	_, env = sessionTurn(t, s, sess.ID, strPtr("robotics"))
	conv := env.Result.Session.Conversation
	require.Equal(t, models.StageFollowUp, conv.CurrentStage)
	require.True(t, conv.NeedsFollowUp)
	assert.NotEmpty(t, env.Result.Turn["followUpQuestion"])

	_, env = sessionTurn(t, s, sess.ID, strPtr("ok"))
	conv = env.Result.Session.Conversation
	require.Equal(t, models.StageSpecificMoment, conv.CurrentStage)
	assert.False(t, conv.NeedsFollowUp, "needsFollowUp should be cleared after advancing")
	assert.True(t, conv.StudentResponses.FollowUpUsed(), "follow-up answer should be recorded")
}

func TestSessionTurn_CancelledRequestIsNotSaved(t *testing.T) {
	collab := testutil.NewFakeCollaborator()
	s, st, _ := newTestServer(t, collab)
	sess := createSession(t, s, models.PromptChallenge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, answer := range []*string{nil, strPtr("tiny")} {
		req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/turn", models.SessionTurnRequest{UserResponse: answer})
		rr := do(s, req.WithContext(ctx))
		testutil.AssertHTTPStatus(t, statusClientClosedRequest, rr.Code, "cancelled turn")
	}

	stored, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageExploration, stored.Conversation.CurrentStage)
	assert.Empty(t, stored.Conversation.Messages)
	assert.Empty(t, stored.Conversation.StudentResponses)
	assert.Zero(t, collab.QuestionCalls)
	assert.Zero(t, collab.ClassifyCalls)
}

func TestSessionTurn_RunToCompleteAndOutline(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.NewFakeCollaborator())
	sess := createSession(t, s, models.PromptIdentity)

	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/outline", nil))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "outline before complete")

	var last turnEnvelope
	for i := 0; i < 7; i++ {
		code, env := sessionTurn(t, s, sess.ID, strPtr(fmt.Sprintf("%s (%d)", longAnswer, i)))
		testutil.AssertHTTPStatus(t, http.StatusOK, code, "answer")
		last = env
	}
	require.Equal(t, models.StageComplete, last.Result.Session.Conversation.CurrentStage)
	assert.Equal(t, float64(100), last.Result.Turn["progressPercentage"])

	code, _ := sessionTurn(t, s, sess.ID, strPtr("one more thing"))
	testutil.AssertHTTPStatus(t, http.StatusConflict, code, "answer after complete")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/outline", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "outline after complete")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodGet, "/api/sessions/"+sess.ID, nil))
	var env sessionEnvelope
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	require.NotNil(t, env.Result.Outline, "outline should be stored on the session")
	assert.NotEmpty(t, env.Result.Outline.Sections)
}

func TestSessionTurn_InFlightConflict(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.NewFakeCollaborator())
	sess := createSession(t, s, models.PromptChoice)

	require.True(t, s.guard.TryAcquire(sess.ID), "guard should be free")
	code, _ := sessionTurn(t, s, sess.ID, strPtr(longAnswer))
	testutil.AssertHTTPStatus(t, http.StatusConflict, code, "concurrent turn")
	s.guard.Release(sess.ID)

	code, _ = sessionTurn(t, s, sess.ID, strPtr(longAnswer))
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "turn after release")
}

func TestSessionTurn_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	code, _ := sessionTurn(t, s, "missing", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, code, "turn on missing session")
}

func TestShareOutline(t *testing.T) {
	s, st, mock := newTestServer(t, testutil.NewFakeCollaborator())
	sess := createSession(t, s, models.PromptIdentity)
	share := models.ShareOutlineRequest{To: "+1 (555) 123-4567"}

	rr := do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/share", share))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "share without outline")

	stored, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	stored.Conversation.CurrentStage = models.StageComplete
	stored.Outline = &models.Outline{Sections: []models.OutlineSection{{Title: "Hook", Content: "Flood week."}}}
	require.NoError(t, st.SaveSession(*stored))

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/share", models.ShareOutlineRequest{To: "abc"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "share to invalid number")

	rr = do(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/sessions/"+sess.ID+"/share", share))
	testutil.AssertHTTPStatus(t, http.StatusAccepted, rr.Code, "share outline")

	s.outbox.Poll(t.Context())
	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "15551234567", sent[0].To, "outline goes to the canonical number")
}
