// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/circle-sketch/models"
)

// Mention formats a member reference the bridge renders as a ping.
func Mention(memberID string) string {
	return "<@" + memberID + ">"
}

// StreakLine renders one member's counter.
func StreakLine(s models.MemberStreak) string {
	if s.Streak > 0 {
		return fmt.Sprintf("%s: %s🔥", Mention(s.MemberID), humanize.Comma(int64(s.Streak)))
	}
	return Mention(s.MemberID) + ": 0"
}

func streakLines(streaks []models.MemberStreak) string {
	lines := make([]string, len(streaks))
	for i, s := range streaks {
		lines[i] = StreakLine(s)
	}
	return strings.Join(lines, "\n")
}

func streakAnnouncement(streak int) string {
	return fmt.Sprintf("The group is on a %s day streak! 🔥 Keep it going.", humanize.Comma(int64(streak)))
}

const openAnnouncement = "@everyone Today's game is starting!"

func themeDM(theme string) string {
	return fmt.Sprintf("Today's drawing theme: **%s**. Please reply with your drawing as an image attachment.", theme)
}

func lateJoinDM(theme string) string {
	return fmt.Sprintf("A game is currently running! Today's drawing theme: **%s**. Please reply with your drawing as an image attachment.", theme)
}

func joinAnnouncement(memberID string) string {
	return Mention(memberID) + " joined the Circle!"
}

func submissionAnnouncement(memberID string) string {
	return Mention(memberID) + " has submitted their image for today! You can still join the current game with `/join`."
}

func emptyReveal(s *models.Summary) string {
	return fmt.Sprintf("No submissions for today's theme: **%s**. The streak has ended at %s.", s.Theme, humanize.Comma(int64(s.Previous)))
}

func galleryHeader(s *models.Summary) string {
	return fmt.Sprintf("Gallery for '**%s**' - %s! Current group streak: %s 🔥\nUser streaks:\n%s",
		s.Theme, s.Date, humanize.Comma(int64(s.Streak)), streakLines(s.Streaks))
}

func cardFailure(memberID string) string {
	return "Failed to generate gallery image for " + Mention(memberID) + "."
}
