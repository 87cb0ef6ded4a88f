package pollclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classpoll/internal/domain/poll"
	"classpoll/internal/events"
	"classpoll/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, active *poll.View) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/api/polls/active", func(c *gin.Context) {
		if active == nil {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("No active poll found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(*active))
	})
	r.POST("/api/polls/:id/vote", func(c *gin.Context) {
		var req httpdto.VoteRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OptionIndex == nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("Invalid request", "INVALID_REQUEST"))
			return
		}
		if req.StudentName == "Amy" {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("You have already voted", "ALREADY_VOTED"))
			return
		}
		c.JSON(http.StatusOK, httpdto.VoteResponse{
			Success:        true,
			Results:        []poll.OptionResult{{Text: "Red", Votes: int64(1 - *req.OptionIndex)}, {Text: "Blue", Votes: int64(*req.OptionIndex)}},
			TotalResponses: 1,
		})
	})
	r.GET("/api/polls/:id/check-vote/:studentName", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.HasVotedResponse{Success: true, HasVoted: c.Param("studentName") == "Amy Lee"})
	})

	upgrader := websocket.Upgrader{}
	r.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil || env.Event != events.CommandPing {
			return
		}
		data, _ := events.New(events.EventPong, nil).Encode()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		_, _, _ = conn.ReadMessage()
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestActivePollNone(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, nil)

	_, ok, err := c.ActivePoll(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActivePollSnapshot(t *testing.T) {
	id := uuid.New()
	view := poll.View{
		Poll: poll.Poll{
			ID:       id,
			Question: "Best color?",
			Options:  []poll.PollOption{{Text: "Red", Votes: 2}, {Position: 1, Text: "Blue", Votes: 1}},
			Duration: 30,
			Status:   poll.StatusActive,
		},
		TotalResponses: 3,
		TimeRemaining:  12,
	}
	ts := fakeAPI(t, &view)
	c := New(ts.URL+"/", nil)

	snap, ok, err := c.ActivePoll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, snap.PollID)
	assert.Equal(t, []string{"Red", "Blue"}, snap.Options)
	assert.Equal(t, int64(2), snap.Results[0].Votes)
	assert.Equal(t, int64(3), snap.TotalResponses)
	assert.Equal(t, 12, snap.TimeRemaining)
	assert.False(t, snap.Ended())
}

func TestVoteAndErrors(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, nil)
	id := uuid.New()

	resp, err := c.Vote(context.Background(), id, 1, "Ben")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Results[1].Votes)

	_, err = c.Vote(context.Background(), id, 0, "Amy")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "ALREADY_VOTED", apiErr.Code)
	assert.Equal(t, "You have already voted", apiErr.Message)

	voted, err := c.HasVoted(context.Background(), id, "Amy Lee")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestStreamRoundTrip(t *testing.T) {
	ts := fakeAPI(t, nil)
	c := New(ts.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stream, err := c.Dial(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Send(events.CommandPing, nil))
	env, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, events.EventPong, env.Event)
	assert.NotZero(t, env.Timestamp)
}
