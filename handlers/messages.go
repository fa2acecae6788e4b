// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/middleware"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/rounds"
)

type DirectMessageHandler struct {
	coord *coordinator.Coordinator
}

func NewDirectMessageHandler(coord *coordinator.Coordinator) *DirectMessageHandler {
	return &DirectMessageHandler{coord: coord}
}

// Handle handles POST /events/direct-message
//
// Only the first attachment counts as the drawing. Messages from bots,
// from members outside the round or while no round is open get no reply.
func (h *DirectMessageHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req models.DirectMessageRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.MemberID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "member_id is required")
		return
	}
	if req.Bot {
		middleware.JSONResponse(w, http.StatusOK, models.DirectMessageResponse{})
		return
	}

	var imageRef string
	if len(req.Attachments) > 0 {
		imageRef = req.Attachments[0].URL
	}

	res, err := h.coord.Submit(r.Context(), req.MemberID, imageRef)
	if err != nil {
		slog.Error("submission failed", "member_id", req.MemberID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, errStorage)
		return
	}

	var text string
	switch res.Outcome {
	case rounds.OutcomeAccepted:
		slog.Info("drawing submitted", "member_id", req.MemberID, "theme", res.Theme)
		text = "Submission received! Thank you."
	case rounds.OutcomeAlreadySubmitted:
		text = "You have already submitted for today's game!"
	case rounds.OutcomeNoAttachment:
		text = "Please submit an image attachment."
	case rounds.OutcomeNotParticipant:
		text = "You are not playing in today's game. Use join to play in the next one."
	default:
		slog.Debug("direct message ignored", "member_id", req.MemberID, "outcome", res.Outcome)
	}

	middleware.JSONResponse(w, http.StatusOK, models.DirectMessageResponse{Reply: text})
}
