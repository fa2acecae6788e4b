// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/circle-sketch/auth"
	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/cliparse"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/middleware"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/rounds"
)

// Command names accepted on POST /commands/{name}
const (
	CmdJoin         = "join"
	CmdLeave        = "leave"
	CmdList         = "list"
	CmdReset        = "reset"
	CmdResetConfirm = "reset_confirm"
	CmdResetCancel  = "reset_cancel"
	CmdStartRound   = "start_round"
	CmdEndRound     = "end_round"
	CmdStatus       = "status"
	CmdShowStreaks  = "show_streaks"
)

const errStorage = "Storage unavailable"

type CommandHandler struct {
	machine *rounds.Machine
	roster  *circle.Manager
	coord   *coordinator.Coordinator
	cfg     cliparse.Config
	now     func() time.Time

	mu     sync.Mutex
	resets map[string]pendingReset
}

// pendingReset is an unanswered reset confirmation
type pendingReset struct {
	adminID string
	expires time.Time
}

func NewCommandHandler(machine *rounds.Machine, roster *circle.Manager, coord *coordinator.Coordinator, cfg cliparse.Config) *CommandHandler {
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = cliparse.DefaultResetTimeout
	}
	return &CommandHandler{
		machine: machine,
		roster:  roster,
		coord:   coord,
		cfg:     cfg,
		now:     time.Now,
		resets:  make(map[string]pendingReset),
	}
}

// Handle handles POST /commands/{name}
func (h *CommandHandler) Handle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req models.CommandRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.MemberID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "member_id is required")
		return
	}

	var (
		resp models.CommandResponse
		err  error
	)
	switch name {
	case CmdJoin:
		resp, err = h.join(r, req)
	case CmdLeave:
		resp, err = h.leave(r, req)
	case CmdList:
		resp, err = h.list(r)
	case CmdReset:
		resp = h.reset(req)
	case CmdResetConfirm:
		resp, err = h.resetConfirm(r, req)
	case CmdResetCancel:
		resp = h.resetCancel(req)
	case CmdStartRound:
		resp, err = h.startRound(r, req)
	case CmdEndRound:
		resp, err = h.endRound(r, req)
	case CmdStatus:
		resp, err = h.status(r)
	case CmdShowStreaks:
		resp, err = h.showStreaks(r)
	default:
		middleware.ErrorResponse(w, http.StatusNotFound, "Unknown command: "+name)
		return
	}

	if err != nil {
		slog.Error("command failed", "command", name, "member_id", req.MemberID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, errStorage)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (h *CommandHandler) join(r *http.Request, req models.CommandRequest) (models.CommandResponse, error) {
	res, err := h.coord.Join(r.Context(), req.MemberID)
	if err != nil {
		return models.CommandResponse{}, err
	}

	capacity := h.roster.Capacity()
	switch res.Outcome {
	case circle.OutcomeAlreadyMember:
		return reply("You are already in the circle."), nil
	case circle.OutcomeFull:
		return reply(fmt.Sprintf("Sorry, the circle is full (%d/%d). A spot will open when someone leaves.", res.Size, capacity)), nil
	}

	slog.Info("member joined", "member_id", req.MemberID, "size", res.Size)
	text := fmt.Sprintf("Welcome! The circle now has %d/%d players.", res.Size, capacity)
	if res.Theme != "" {
		text += " A game is running, check your DMs for the theme."
	}
	return reply(text), nil
}

func (h *CommandHandler) leave(r *http.Request, req models.CommandRequest) (models.CommandResponse, error) {
	res, err := h.roster.Leave(r.Context(), req.MemberID)
	if err != nil {
		return models.CommandResponse{}, err
	}
	if res.Outcome == circle.OutcomeNotMember {
		return reply("You are not in the circle."), nil
	}
	slog.Info("member left", "member_id", req.MemberID, "size", res.Size)
	return reply("You have left the circle."), nil
}

func (h *CommandHandler) list(r *http.Request) (models.CommandResponse, error) {
	listing, err := h.roster.List(r.Context())
	if err != nil {
		return models.CommandResponse{}, err
	}
	if listing.Size == 0 {
		return reply("The player circle is currently empty."), nil
	}

	mentions := make([]string, len(listing.Members))
	for i, id := range listing.Members {
		mentions[i] = coordinator.Mention(id)
	}
	return reply(fmt.Sprintf("Current Players (%d/%d): %s", listing.Size, listing.Capacity, strings.Join(mentions, ", "))), nil
}

// reset asks the administrator to confirm with the returned token
func (h *CommandHandler) reset(req models.CommandRequest) models.CommandResponse {
	if !req.Admin {
		slog.Warn("reset denied", "member_id", req.MemberID)
		return reply("You do not have permission to use this command.")
	}

	token, err := auth.GenerateConfirmToken()
	if err != nil {
		slog.Error("failed to generate confirmation token", "error", err)
		return reply("Could not start a reset, please try again.")
	}

	now := h.now()
	expires := now.Add(h.cfg.ResetTimeout)

	h.mu.Lock()
	for t, p := range h.resets {
		if !now.Before(p.expires) {
			delete(h.resets, t)
		}
	}
	h.resets[token] = pendingReset{adminID: req.MemberID, expires: expires}
	h.mu.Unlock()

	return models.CommandResponse{
		Reply:     "Are you sure you want to reset the player circle?",
		Token:     token,
		ExpiresAt: &expires,
	}
}

// take removes the pending reset adminID asked for; ok is false if it is
// unknown, expired or belongs to another administrator
func (h *CommandHandler) take(token, adminID string) (pendingReset, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.resets[token]
	if !ok || p.adminID != adminID {
		return pendingReset{}, false
	}
	delete(h.resets, token)
	return p, h.now().Before(p.expires)
}

func (h *CommandHandler) resetConfirm(r *http.Request, req models.CommandRequest) (models.CommandResponse, error) {
	if !req.Admin {
		return reply("You do not have permission to use this command."), nil
	}
	p, ok := h.take(req.Token, req.MemberID)
	if !ok {
		return reply("Reset cancelled (no confirmation received)."), nil
	}

	if err := h.roster.Reset(r.Context()); err != nil {
		return models.CommandResponse{}, err
	}
	slog.Info("circle reset confirmed", "admin_id", p.adminID)
	return reply("Player circle has been reset."), nil
}

func (h *CommandHandler) resetCancel(req models.CommandRequest) models.CommandResponse {
	h.take(req.Token, req.MemberID)
	return reply("Reset cancelled.")
}

func (h *CommandHandler) startRound(r *http.Request, req models.CommandRequest) (models.CommandResponse, error) {
	res, err := h.coord.StartManual(r.Context(), req.MemberID)
	if err != nil {
		return models.CommandResponse{}, err
	}

	switch res.Outcome {
	case rounds.OutcomeAlreadyRunning:
		return reply("A game is already running."), nil
	case rounds.OutcomeNoPlayers:
		return reply("Not enough players to start the game."), nil
	}
	slog.Info("manual round started", "member_id", req.MemberID, "round_id", res.Round.ID)
	return reply("Manual game started! Prompt posted. Use /end_round to end it."), nil
}

func (h *CommandHandler) endRound(r *http.Request, req models.CommandRequest) (models.CommandResponse, error) {
	res, err := h.coord.EndManual(r.Context(), req.MemberID, req.Admin)
	if err != nil {
		return models.CommandResponse{}, err
	}

	switch res.Outcome {
	case rounds.OutcomeNoActiveRound:
		return reply("No game is currently running."), nil
	case rounds.OutcomeUnauthorized:
		return reply("Only the game starter or an admin can end the game."), nil
	}
	slog.Info("round ended manually", "member_id", req.MemberID, "round_id", res.Summary.RoundID)
	return reply("Game ended and gallery posted."), nil
}

func (h *CommandHandler) status(r *http.Request) (models.CommandResponse, error) {
	res, err := h.machine.Status(r.Context())
	if err != nil {
		return models.CommandResponse{}, err
	}
	if res.Outcome == rounds.OutcomeNoActiveRound {
		return reply("No game is currently running."), nil
	}

	now := res.NextClose.Add(-res.UntilClose)
	var b strings.Builder
	b.WriteString("**CircleSketch Game Status**\n")
	fmt.Fprintf(&b, "Theme: **%s**\n", res.Round.Theme)
	fmt.Fprintf(&b, "Started: %s\n", res.Round.Date)
	fmt.Fprintf(&b, "Players in circle: %d\n", res.Participants)
	fmt.Fprintf(&b, "Submissions so far: %d\n", res.Submissions)
	fmt.Fprintf(&b, "Time left: %s until next scheduled end (%s)\n",
		clock(res.UntilClose), humanize.RelTime(res.NextClose, now, "ago", "from now"))
	return reply(b.String()), nil
}

func (h *CommandHandler) showStreaks(r *http.Request) (models.CommandResponse, error) {
	board, err := h.machine.Streaks(r.Context())
	if err != nil {
		return models.CommandResponse{}, err
	}
	if len(board.Members) == 0 {
		return reply(fmt.Sprintf("Current group streak: %s\nNo user streaks found.", humanize.Comma(int64(board.Group)))), nil
	}

	lines := make([]string, len(board.Members))
	for i, s := range board.Members {
		lines[i] = coordinator.StreakLine(s)
	}
	return reply(fmt.Sprintf("Current group streak: %s 🔥\n\nUser streaks:\n%s",
		humanize.Comma(int64(board.Group)), strings.Join(lines, "\n"))), nil
}

func reply(text string) models.CommandResponse {
	return models.CommandResponse{Reply: text}
}

// clock formats d as "22h 30m 0s"
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%dh %dm %ds", h, m, d/time.Second)
}
