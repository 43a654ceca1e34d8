package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"team-chat/domain/event"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseSuite drives a running server over its public surfaces only.
type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests.
// Without a server address the whole suite is skipped.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR is not set")
	}
	s.Config.ServerAddr = strings.TrimSuffix(s.Config.ServerAddr, "/")
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call sends a JSON request and decodes the JSON answer into out when given.
func (s *BaseSuite) Call(method, path, token string, body any, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	r, err := http.NewRequest(method, s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(r)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(payload))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Dial opens a realtime connection authenticated with token.
func (s *BaseSuite) Dial(token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.Config.ServerAddr, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

// Await reads frames until one named name arrives and decodes its data.
func (s *BaseSuite) Await(conn *websocket.Conn, name event.Type, out any) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var envelope event.Envelope
		s.Require().NoError(conn.ReadJSON(&envelope), "waiting for "+string(name))
		if s.Config.DebugJSON {
			s.T().Logf("WS <- %s %s", envelope.Event, envelope.Data)
		}
		if envelope.Event == name {
			if out != nil {
				s.Require().NoError(json.Unmarshal(envelope.Data, out))
			}
			return
		}
	}
}
