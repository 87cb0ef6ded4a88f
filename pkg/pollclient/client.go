package pollclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/transport/httpdto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// APIError is a non-2xx reply from the REST API.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the poll REST API and opens push streams.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SnapshotFromView converts a REST poll into a reconciler snapshot.
func SnapshotFromView(v poll.View) Snapshot {
	return Snapshot{
		PollID:         v.ID,
		Question:       v.Question,
		Options:        v.OptionTexts(),
		Results:        v.Results(),
		TotalResponses: v.TotalResponses,
		TimeRemaining:  v.TimeRemaining,
		Status:         v.Status,
	}
}

// ActivePoll fetches the running poll. ok is false when none is active.
func (c *Client) ActivePoll(ctx context.Context) (snap Snapshot, ok bool, err error) {
	var resp httpdto.Response[poll.View]
	err = c.do(ctx, http.MethodGet, "/api/polls/active", nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return SnapshotFromView(resp.Data), true, nil
}

func (c *Client) Poll(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	var resp httpdto.Response[poll.View]
	if err := c.do(ctx, http.MethodGet, "/api/polls/"+id.String(), nil, &resp); err != nil {
		return Snapshot{}, err
	}
	return SnapshotFromView(resp.Data), nil
}

func (c *Client) Vote(ctx context.Context, id uuid.UUID, optionIndex int, studentName string) (httpdto.VoteResponse, error) {
	var resp httpdto.VoteResponse
	body := httpdto.VoteRequest{OptionIndex: &optionIndex, StudentName: studentName}
	err := c.do(ctx, http.MethodPost, "/api/polls/"+id.String()+"/vote", body, &resp)
	return resp, err
}

func (c *Client) HasVoted(ctx context.Context, id uuid.UUID, studentName string) (bool, error) {
	var resp httpdto.HasVotedResponse
	path := "/api/polls/" + id.String() + "/check-vote/" + url.PathEscape(studentName)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.HasVoted, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var failure httpdto.Response[any]
		if json.NewDecoder(resp.Body).Decode(&failure) == nil {
			apiErr.Message = failure.Message
			apiErr.Code = failure.Code
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Stream is one push connection to the server.
type Stream struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Dial opens the push stream at /ws.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return &Stream{conn: conn}, nil
}

func (s *Stream) Send(command string, data interface{}) error {
	payload, err := events.New(command, data).Encode()
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Next blocks until the next envelope arrives.
func (s *Stream) Next() (events.Envelope, error) {
	var env events.Envelope
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(raw, &env)
	return env, err
}

func (s *Stream) Close() error {
	s.wmu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.wmu.Unlock()
	return s.conn.Close()
}
