package handler

import (
	"errors"
	"net/http"
	"strconv"

	"classpoll/internal/domain/poll"
	"classpoll/internal/services"
	"classpoll/internal/transport/httpdto"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PollHandler struct {
	polls  *services.PollService
	votes  *services.VoteService
	logger *logger.Logger
}

func NewPollHandler(polls *services.PollService, votes *services.VoteService, l *logger.Logger) *PollHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &PollHandler{polls: polls, votes: votes, logger: l}
}

func (h *PollHandler) Create(c *gin.Context) {
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("Please provide a question and at least 2 options", "INVALID_REQUEST"))
		return
	}

	view, err := h.polls.CreatePoll(c.Request.Context(), services.CreatePollInput{
		Question: req.Question,
		Options:  req.Options,
		Duration: req.Duration,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *PollHandler) Active(c *gin.Context) {
	view, found, err := h.polls.GetActivePoll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("No active poll found", "NOT_FOUND"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

// List returns ended polls, newest first. ?limit= narrows the default cap.
func (h *PollHandler) List(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
		return
	}

	views, err := h.polls.ListEndedPolls(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if views == nil {
		views = []poll.View{}
	}

	c.JSON(http.StatusOK, httpdto.PollListResponse{Success: true, Data: views})
}

func (h *PollHandler) Get(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		h.writeError(c, classpoll_errors.ErrNotFound)
		return
	}

	view, err := h.polls.GetPoll(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *PollHandler) End(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		h.writeError(c, classpoll_errors.ErrNotFound)
		return
	}

	view, err := h.polls.EndPoll(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *PollHandler) Vote(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		h.writeError(c, classpoll_errors.ErrNotFound)
		return
	}

	var req httpdto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OptionIndex == nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("Option index and student name are required", "INVALID_REQUEST"))
		return
	}

	result, err := h.votes.SubmitVote(c.Request.Context(), services.VoteInput{
		PollID:      id,
		OptionIndex: *req.OptionIndex,
		StudentName: req.StudentName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.VoteResponse{
		Success:        true,
		Results:        result.Results,
		TotalResponses: result.TotalResponses,
	})
}

// CheckVote never fails on unknown polls; it reports hasVoted=false.
func (h *PollHandler) CheckVote(c *gin.Context) {
	id, ok := pollIDParam(c)
	if !ok {
		c.JSON(http.StatusOK, httpdto.HasVotedResponse{Success: true})
		return
	}

	voted, err := h.votes.HasVoted(c.Request.Context(), id, c.Param("studentName"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.HasVotedResponse{Success: true, HasVoted: voted})
}

func (h *PollHandler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, httpdto.NewErrorResponse(classpoll_errors.PublicMessage(err), code))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, classpoll_errors.ErrValidation):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, classpoll_errors.ErrConflict):
		return http.StatusBadRequest, "POLL_ACTIVE"
	case errors.Is(err, classpoll_errors.ErrInvalidState):
		return http.StatusBadRequest, "POLL_NOT_ACTIVE"
	case errors.Is(err, classpoll_errors.ErrDuplicateVote):
		return http.StatusBadRequest, "ALREADY_VOTED"
	case errors.Is(err, classpoll_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func pollIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseLimit(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}
