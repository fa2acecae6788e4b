// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/circle-sketch/models"
)

func encodeRound(round *models.Round) ([]byte, error) {
	r := *round
	r.Version = models.RoundVersion
	payload, err := json.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode round: %w", err)
	}
	return payload, nil
}

// decodeRound loads a stored payload and upgrades it to the current
// schema. Payloads without a theme decode to nil (idle).
func decodeRound(payload []byte) (*models.Round, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRound, err)
	}

	var round *models.Round
	if probe.Version >= models.RoundVersion {
		round = &models.Round{}
		if err := json.Unmarshal(payload, round); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRound, err)
		}
	} else {
		var err error
		if round, err = migrateLegacyRound(payload); err != nil {
			return nil, err
		}
	}

	if round == nil || strings.TrimSpace(round.Theme) == "" {
		return nil, nil
	}
	fillRoundDefaults(round, payload)
	return round, nil
}

// legacyRound is the free-form state written by the first bot: integer
// member IDs, a duplicated gallery map and an optional starter.
type legacyRound struct {
	Theme       string            `json:"theme"`
	Date        string            `json:"date"`
	StartTime   string            `json:"start_time"`
	UserIDs     []json.Number     `json:"user_ids"`
	Submissions map[string]string `json:"submissions"`
	Gallery     map[string]string `json:"gallery"`
	StarterID   *json.Number      `json:"manual_game_starter_id"`
}

func migrateLegacyRound(payload []byte) (*models.Round, error) {
	var old legacyRound
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&old); err != nil {
		return nil, fmt.Errorf("%w: legacy round: %v", ErrCorruptRound, err)
	}
	if old.Theme == "" {
		return nil, nil
	}

	round := &models.Round{
		Theme: old.Theme,
		Date:  old.Date,
	}
	if old.StarterID != nil {
		round.StarterID = old.StarterID.String()
		round.Trigger = models.TriggerManual
	}
	if t, err := time.Parse(time.RFC3339Nano, old.StartTime); err == nil {
		round.OpenedAt = t
	}
	for _, id := range old.UserIDs {
		round.Participants = append(round.Participants, id.String())
	}

	// gallery and submissions were kept in step; take the union
	entries := make(map[string]string, len(old.Submissions))
	for id, ref := range old.Gallery {
		entries[id] = ref
	}
	for id, ref := range old.Submissions {
		entries[id] = ref
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		round.Submissions = append(round.Submissions, models.Submission{
			MemberID:    id,
			ImageRef:    entries[id],
			SubmittedAt: round.OpenedAt,
		})
	}
	return round, nil
}

func fillRoundDefaults(round *models.Round, payload []byte) {
	if round.ID == "" {
		// stable across reloads until the round is next written
		round.ID = uuid.NewSHA1(uuid.NameSpaceOID, payload).String()
	}
	if round.Trigger == "" {
		round.Trigger = models.TriggerScheduled
		if round.StarterID != "" {
			round.Trigger = models.TriggerManual
		}
	}
	if round.Date == "" && !round.OpenedAt.IsZero() {
		round.Date = round.OpenedAt.Format(models.DateLayout)
	}
	if round.Participants == nil {
		round.Participants = []string{}
	}
	if round.Submissions == nil {
		round.Submissions = []models.Submission{}
	}
	// every submitter must be a participant
	for _, s := range round.Submissions {
		if !slices.Contains(round.Participants, s.MemberID) {
			round.Participants = append(round.Participants, s.MemberID)
		}
	}
	round.Version = models.RoundVersion
}
