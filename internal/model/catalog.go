// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// ChatModel is one entry of a user's selectable model catalog.
type ChatModel struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// NormalizeChatModels drops entries with an empty id or label and sorts the
// rest by position. The sort is stable so insertion order breaks ties.
func NormalizeChatModels(models []ChatModel) []ChatModel {
	out := make([]ChatModel, 0, len(models))
	for _, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		m.Label = strings.TrimSpace(m.Label)
		if m.ID == "" || m.Label == "" {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// ContainsChatModel reports whether id is present in models.
func ContainsChatModel(models []ChatModel, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// CloneChatModels returns an independent copy of models.
func CloneChatModels(models []ChatModel) []ChatModel {
	if models == nil {
		return nil
	}
	out := make([]ChatModel, len(models))
	copy(out, models)
	return out
}
