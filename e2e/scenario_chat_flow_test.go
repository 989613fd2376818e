package e2e

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type testChatFlowSuite struct {
	BaseHTTPSuite
}

func TestChatFlowSuite(t *testing.T) {
	suite.Run(t, &testChatFlowSuite{})
}

type envelope struct {
	Code string `json:"code"`
	Data struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Messages []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"messages"`
	} `json:"data"`
}

func (s *testChatFlowSuite) TestFullConversationTurn() {
	var chatID string

	// --- STEP 1: CREATE THE THREAD ---
	s.Run("Step 1: Create a personal chat", func() {
		var created envelope
		resp := s.DoJSON("Creating chat", http.MethodPost, "/api/v1/chats", nil, &created)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		s.Require().Equal("CREATED", created.Code)
		s.Require().NotEmpty(created.Data.ID)
		chatID = created.Data.ID
	})

	// --- STEP 2: ONE TURN, STREAMED BACK ---
	s.Run("Step 2: Send a message and verify the SSE protocol", func() {
		stream := s.StreamSSE("Streaming one conversation turn", "/chat/"+chatID+"/messages",
			map[string]string{"text": "Hello, what can you do?"})

		// SEQUENCE CHECK: at least one part event, exactly one terminal event
		s.Require().Regexp(`event:\s*part`, stream, "Stream closed without any output part")
		terminal := len(regexp.MustCompile(`event:\s*(done|error)`).FindAllString(stream, -1))
		s.Require().Equal(1, terminal, "Protocol error: expected exactly one terminal event")
		s.Require().Regexp(`event:\s*done`, stream, "Generation did not finalize cleanly")
	})

	// --- STEP 3: TIMELINE HYDRATION ---
	s.Run("Step 3: History holds the committed turn", func() {
		var history envelope
		resp := s.DoJSON("Hydrating the timeline", http.MethodGet, "/chat/"+chatID, nil, &history)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Require().Len(history.Data.Messages, 2, "Expected exactly user + assistant messages")
		s.Require().Equal("user", history.Data.Messages[0].Role)
		s.Require().Equal("assistant", history.Data.Messages[1].Role)
	})

	// --- STEP 4: ASYNCHRONOUS TITLE DERIVATION ---
	s.Run("Step 4: Wait for the derived title", func() {
		s.Eventually(func() bool {
			var history envelope
			resp := s.DoJSON("Polling for title", http.MethodGet, "/chat/"+chatID, nil, &history)
			return resp.StatusCode == http.StatusOK && history.Data.Title != ""
		}, 30*time.Second, 1*time.Second, "Title not derived within timeout")
	})
}
