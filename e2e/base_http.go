package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"github.com/hphungg/chatbot-sub001/auth"
	"github.com/hphungg/chatbot-sub001/domain"
)

// BaseHTTPSuite drives a running server over plain HTTP. The suite mints its
// own bearer tokens, which requires JWT_SECRET to match the target server.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	Token  string
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end-to-end suite")
	}

	tokens := auth.NewTokenManager(s.Config.JWTSecret, time.Hour)
	s.Token, err = tokens.Generate(domain.Identity{UserID: "e2e-user"})
	s.Require().NoError(err)

	s.client = &http.Client{Timeout: 60 * time.Second}
}

// Header prints a colorized step banner in logs
func (s *BaseHTTPSuite) Header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// DoJSON fires one authenticated JSON request and decodes the envelope into
// out. Response bodies are logged when E2E_DEBUG_JSON is enabled.
func (s *BaseHTTPSuite) DoJSON(name, method, path string, body any, out any) *http.Response {
	s.Header(s.T(), name)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, s.Config.ServerAddr+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp
}

// StreamSSE posts a message and collects the raw SSE event stream until the
// server closes it.
func (s *BaseHTTPSuite) StreamSSE(name, path string, body any) string {
	s.Header(s.T(), name)

	encoded, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.Config.ServerAddr+path, bytes.NewReader(encoded))
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Logf("SSE STREAM:\n%s", string(raw))
	}
	return string(raw)
}
