// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	chatsvc "github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/client"
)

// SendResultMsg reports the outcome of a send.
type SendResultMsg struct {
	Result *chatsvc.SendResult
	Err    error
}

// HealthMsg reports a completed health probe.
type HealthMsg struct {
	Online client.Online
}

// CommandResultMsg carries the output of a slash command.
type CommandResultMsg struct {
	Output string
	Quit   bool
}

// ModelsLoadedMsg reports the initial catalog load.
type ModelsLoadedMsg struct {
	Err error
}
