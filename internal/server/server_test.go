package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classpoll/config"
	"classpoll/internal/events"
	"classpoll/internal/handler"
	"classpoll/internal/repository"
	"classpoll/internal/services"
	"classpoll/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStack struct {
	server *httptest.Server
	hub    *Hub
	polls  *services.PollService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := testutil.SetupTestDB(t)
	pollRepo := repository.NewPollRepository(db)
	responseRepo := repository.NewResponseRepository(db)

	hub := NewHub(services.NewPresenceService(), nil)
	cfg := services.DefaultPollConfig()
	cfg.TickInterval = time.Hour
	polls := services.NewPollService(pollRepo, responseRepo, hub, cfg, nil)
	votes := services.NewVoteService(pollRepo, responseRepo, hub, nil)
	hub.SetDispatcher(NewDispatcher(hub, polls, votes))
	go hub.Run()

	srv := New(&config.Config{AppPort: "0", AppMode: TestMode}, nil)
	srv.SetupRoutes(&Handlers{
		Poll:      handler.NewPollHandler(polls, votes, nil),
		WebSocket: NewWebSocketHandler(hub, ""),
	}, nil, HealthCheck{Name: "database", Check: func(context.Context) error { return nil }})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		polls.Shutdown()
		hub.Stop()
		ts.Close()
	})
	return &testStack{server: ts, hub: hub, polls: polls}
}

func (s *testStack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	msg := map[string]interface{}{"event": event}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) events.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env events.Envelope
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		require.NoError(t, json.Unmarshal(raw, &env))
		if env.Event == event {
			assert.NotZero(t, env.Timestamp)
			return env
		}
	}
}

func decode(t *testing.T, env events.Envelope, v interface{}) {
	t.Helper()
	require.NoError(t, env.Decode(v))
}

func joinStudent(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	send(t, conn, events.CommandStudentJoin, events.StudentJoinRequest{StudentName: name})
	var confirmed events.JoinConfirmedPayload
	decode(t, readUntil(t, conn, events.EventJoinConfirmed), &confirmed)
	require.Equal(t, name, confirmed.StudentName)
}

func waitForRoster(t *testing.T, conn *websocket.Conn, want ...string) []string {
	t.Helper()
	for {
		var payload events.ParticipantsPayload
		decode(t, readUntil(t, conn, events.EventParticipantsChanged), &payload)
		names := make([]string, len(payload.Participants))
		for i, p := range payload.Participants {
			names[i] = p.Name
		}
		if assert.ObjectsAreEqual(want, names) {
			return names
		}
	}
}

func TestPollLifecycleOverWebSocket(t *testing.T) {
	stack := newTestStack(t)
	teacher := stack.dial(t)
	student := stack.dial(t)

	send(t, teacher, events.CommandTeacherJoin, nil)
	waitForRoster(t, teacher, "Teacher")
	joinStudent(t, student, "Amy")
	waitForRoster(t, teacher, "Teacher", "Amy")

	send(t, teacher, events.CommandCreatePoll, events.CreatePollRequest{
		Question: "Best color?",
		Options:  []string{"Red", "Blue"},
		Duration: 30,
	})

	var created events.PollCreatedPayload
	decode(t, readUntil(t, student, events.EventPollCreated), &created)
	assert.Equal(t, []string{"Red", "Blue"}, created.Options)
	readUntil(t, teacher, events.EventPollCreated)

	send(t, student, events.CommandSubmitVote, events.SubmitVoteRequest{
		PollID:      created.PollID.String(),
		OptionIndex: 0,
		StudentName: "Amy",
	})

	var voted struct {
		PollID  string `json:"pollId"`
		Results []struct {
			Votes int64 `json:"votes"`
		} `json:"results"`
		TotalResponses int64 `json:"totalResponses"`
	}
	decode(t, readUntil(t, teacher, events.EventVoteRecorded), &voted)
	require.Len(t, voted.Results, 2)
	assert.Equal(t, int64(1), voted.Results[0].Votes)
	assert.Equal(t, int64(1), voted.TotalResponses)

	send(t, student, events.CommandSubmitVote, events.SubmitVoteRequest{
		PollID:      created.PollID.String(),
		OptionIndex: 1,
		StudentName: "Amy",
	})
	var voteErr events.MessagePayload
	decode(t, readUntil(t, student, events.EventVoteError), &voteErr)
	assert.Equal(t, "You have already voted", voteErr.Message)

	send(t, teacher, events.CommandCreatePoll, events.CreatePollRequest{Question: "Again?", Options: []string{"A", "B"}})
	var pollErr events.MessagePayload
	decode(t, readUntil(t, teacher, events.EventPollError), &pollErr)
	assert.Contains(t, pollErr.Message, "already active")

	send(t, teacher, events.CommandEndPoll, events.PollRefRequest{PollID: created.PollID.String()})
	var ended events.PollEndedPayload
	decode(t, readUntil(t, student, events.EventPollEnded), &ended)
	assert.Equal(t, created.PollID, ended.PollID)
	assert.Equal(t, int64(1), ended.TotalResponses)

	send(t, student, events.CommandGetPollResults, events.PollRefRequest{PollID: created.PollID.String()})
	var results events.PollResultsPayload
	decode(t, readUntil(t, student, events.EventPollResults), &results)
	assert.Equal(t, "ended", string(results.Status))
	assert.Equal(t, int64(1), results.Results[0].Votes)
}

func TestRESTCreateFansOutToSockets(t *testing.T) {
	stack := newTestStack(t)
	conn := stack.dial(t)

	send(t, conn, events.CommandGetActivePoll, nil)
	readUntil(t, conn, events.EventNoActivePoll)

	body := strings.NewReader(`{"question":"Ready?","options":["Yes","No"]}`)
	resp, err := http.Post(stack.server.URL+"/api/polls", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created events.PollCreatedPayload
	decode(t, readUntil(t, conn, events.EventPollCreated), &created)
	assert.Equal(t, 60, created.Duration)

	send(t, conn, events.CommandGetActivePoll, nil)
	var active events.ActivePollPayload
	decode(t, readUntil(t, conn, events.EventActivePoll), &active)
	assert.Equal(t, created.PollID, active.PollID)
	assert.InDelta(t, 60, active.TimeRemaining, 1)
}

func TestRemoveStudentClosesConnection(t *testing.T) {
	stack := newTestStack(t)
	teacher := stack.dial(t)
	student := stack.dial(t)

	send(t, teacher, events.CommandTeacherJoin, nil)
	waitForRoster(t, teacher, "Teacher")
	joinStudent(t, student, "Amy")
	waitForRoster(t, teacher, "Teacher", "Amy")

	send(t, teacher, events.CommandRemoveStudent, events.RemoveStudentRequest{StudentName: "Amy"})

	var removed events.MessagePayload
	decode(t, readUntil(t, student, events.EventRemovedFromSession), &removed)
	assert.Equal(t, "You have been removed from the session by the teacher", removed.Message)

	require.NoError(t, student.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := student.ReadMessage()
	assert.Error(t, err)

	waitForRoster(t, teacher, "Teacher")
	require.Eventually(t, func() bool { return stack.hub.ClientCount() == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestDisconnectUpdatesRoster(t *testing.T) {
	stack := newTestStack(t)
	teacher := stack.dial(t)
	student := stack.dial(t)

	send(t, teacher, events.CommandTeacherJoin, nil)
	waitForRoster(t, teacher, "Teacher")
	joinStudent(t, student, "Amy")
	waitForRoster(t, teacher, "Teacher", "Amy")

	student.Close()
	waitForRoster(t, teacher, "Teacher")

	send(t, teacher, events.CommandGetParticipants, nil)
	waitForRoster(t, teacher, "Teacher")
}

func TestChatAndPing(t *testing.T) {
	stack := newTestStack(t)
	a := stack.dial(t)
	b := stack.dial(t)

	// a pong proves the hub registered b
	send(t, b, events.CommandPing, nil)
	readUntil(t, b, events.EventPong)

	send(t, a, events.CommandSendChatMessage, map[string]interface{}{
		"sender":    "Amy",
		"message":   "hello",
		"role":      "student",
		"timestamp": "2026-05-01T08:00:00Z",
	})
	for _, conn := range []*websocket.Conn{a, b} {
		var msg events.ChatMessagePayload
		decode(t, readUntil(t, conn, events.EventChatMessage), &msg)
		assert.Equal(t, "hello", msg.Message)
		assert.JSONEq(t, `"2026-05-01T08:00:00Z"`, string(msg.Timestamp))
	}
}

func TestHealthEndpoint(t *testing.T) {
	stack := newTestStack(t)

	resp, err := http.Get(stack.server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestClientRateLimiter(t *testing.T) {
	rl := NewClientRateLimiter(RateLimits{MaxChatMessages: 2, MaxPingMessages: 1, MaxCommands: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(events.CommandSendChatMessage))
	assert.True(t, rl.Allow(events.CommandSendChatMessage))
	assert.False(t, rl.Allow(events.CommandSendChatMessage))
	assert.True(t, rl.Allow(events.CommandPing))
	assert.False(t, rl.Allow(events.CommandPing))
	assert.True(t, rl.Allow(events.CommandSubmitVote))
	assert.False(t, rl.Allow(events.CommandGetActivePoll))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow(events.CommandSendChatMessage))
	assert.True(t, rl.Allow(events.CommandPing))
}

func TestPublishAfterStop(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	hub.Stop()

	err := hub.Publish(context.Background(), events.New(events.EventPong, nil))
	assert.ErrorIs(t, err, ErrHubStopped)
}
