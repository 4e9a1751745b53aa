package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"livepoll/internal/poll/models"
	"livepoll/internal/poll/service"
	"livepoll/internal/poll/store/memory"
	"livepoll/internal/ratelimit"
)

type PollHandlerSuite struct {
	suite.Suite
	router  chi.Router
	store   *memory.Store
	limiter *ratelimit.Limiter
}

func (s *PollHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = memory.New()
	s.limiter = ratelimit.New(ratelimit.NewInMemoryBucketStore(), 3, time.Minute, logger)

	svc := service.New(s.store, nil, logger, "http://localhost:3000")
	h := New(svc, s.limiter, logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func TestPollHandlerSuite(t *testing.T) {
	suite.Run(t, new(PollHandlerSuite))
}

func (s *PollHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	s.T().Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *PollHandlerSuite) createPoll() *models.CreatePollResponse {
	s.T().Helper()
	w := s.do(http.MethodPost, "/api/polls", models.CreatePollRequest{
		Question: "Tabs or spaces?",
		Options:  []string{"Tabs", "Spaces"},
	})
	require.Equal(s.T(), http.StatusCreated, w.Code)
	var resp models.CreatePollResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func (s *PollHandlerSuite) TestCreatePoll() {
	resp := s.createPoll()

	assert.False(s.T(), resp.ID.IsNil())
	assert.Equal(s.T(), "Tabs or spaces?", resp.Question)
	require.Len(s.T(), resp.Options, 2)
	assert.Equal(s.T(), 0, resp.Options[0].VoteCount)
	assert.Equal(s.T(), "http://localhost:3000/poll/"+resp.ID.String(), resp.ShareableLink)
}

func (s *PollHandlerSuite) TestCreatePollMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/polls", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(s.T(), "bad_request", body["error"])
}

func (s *PollHandlerSuite) TestCreatePollValidation() {
	w := s.do(http.MethodPost, "/api/polls", models.CreatePollRequest{
		Question: "Lonely?",
		Options:  []string{"only one"},
	})

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(s.T(), "invalid_input", body["error"])
	assert.Contains(s.T(), body["error_description"], "options")
}

func (s *PollHandlerSuite) TestGetPoll() {
	created := s.createPoll()

	w := s.do(http.MethodGet, "/api/polls/"+created.ID.String(), nil)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var poll models.Poll
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &poll))
	assert.Equal(s.T(), created.ID, poll.ID)
	assert.Equal(s.T(), "Tabs or spaces?", poll.Question)
}

func (s *PollHandlerSuite) TestGetPollMalformedID() {
	w := s.do(http.MethodGet, "/api/polls/not-a-uuid", nil)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *PollHandlerSuite) TestGetPollNotFound() {
	w := s.do(http.MethodGet, "/api/polls/11111111-2222-3333-4444-555555555555", nil)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(s.T(), "not_found", body["error"])
}

func (s *PollHandlerSuite) TestVote() {
	created := s.createPoll()

	w := s.do(http.MethodPost, "/api/polls/"+created.ID.String()+"/vote", models.VoteRequest{
		OptionID:    created.Options[0].ID.String(),
		Fingerprint: "fp-1",
	})

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var poll models.Poll
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &poll))
	assert.Equal(s.T(), 1, poll.Options[0].VoteCount)
	assert.Equal(s.T(), 0, poll.Options[1].VoteCount)
}

func (s *PollHandlerSuite) TestVoteDuplicate() {
	created := s.createPoll()
	path := "/api/polls/" + created.ID.String() + "/vote"

	first := s.do(http.MethodPost, path, models.VoteRequest{
		OptionID:    created.Options[0].ID.String(),
		Fingerprint: "fp-dup",
	})
	require.Equal(s.T(), http.StatusOK, first.Code)

	second := s.do(http.MethodPost, path, models.VoteRequest{
		OptionID:    created.Options[1].ID.String(),
		Fingerprint: "fp-dup",
	})

	assert.Equal(s.T(), http.StatusConflict, second.Code)
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(s.T(), "duplicate_vote", body["error"])
}

func (s *PollHandlerSuite) TestVoteForeignOption() {
	created := s.createPoll()
	other := s.createPoll()

	w := s.do(http.MethodPost, "/api/polls/"+created.ID.String()+"/vote", models.VoteRequest{
		OptionID:    other.Options[0].ID.String(),
		Fingerprint: "fp-cross",
	})

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(s.T(), "invalid_option", body["error"])
}

func (s *PollHandlerSuite) TestVoteMissingFingerprint() {
	created := s.createPoll()

	w := s.do(http.MethodPost, "/api/polls/"+created.ID.String()+"/vote", models.VoteRequest{
		OptionID: created.Options[0].ID.String(),
	})

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *PollHandlerSuite) TestVoteRateLimited() {
	created := s.createPoll()
	path := "/api/polls/" + created.ID.String() + "/vote"

	// The limiter admits 3 attempts per window per address, accepted or
	// not. Duplicate rejections still burn attempts.
	for i := 0; i < 3; i++ {
		w := s.do(http.MethodPost, path, models.VoteRequest{
			OptionID:    created.Options[0].ID.String(),
			Fingerprint: "fp-limited",
		})
		require.NotEqual(s.T(), http.StatusTooManyRequests, w.Code)
	}

	w := s.do(http.MethodPost, path, models.VoteRequest{
		OptionID:    created.Options[0].ID.String(),
		Fingerprint: "fp-limited",
	})

	assert.Equal(s.T(), http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(s.T(), w.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(s.T(), "rate_limited", body["error"])
}

func (s *PollHandlerSuite) TestVoteUnsupportedContentType() {
	created := s.createPoll()

	req := httptest.NewRequest(http.MethodPost, "/api/polls/"+created.ID.String()+"/vote", bytes.NewReader([]byte("optionId=x")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnsupportedMediaType, w.Code)
}
