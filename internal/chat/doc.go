// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates mentor conversations on the server.
//
// A send runs through a fixed sequence: route the message to a mentor,
// ensure the user and conversation exist, check the per-conversation rate
// limit, persist the user message and preview, generate the reply, persist
// the assistant message, and bump the conversation's freshness. A rate
// limit failure stops the send before any message is written. A provider
// failure leaves the user message stored and writes no assistant message.
//
// # Key Types
//
//   - Service: Send and Conversation entry points plus conversation CRUD
//   - SendRequest / SendResult: Input and output of one orchestrated send
//   - Store, Limiter, Generator: The narrow collaborators the service needs
//
// # Usage
//
//	svc := chat.NewService(chat.Deps{Store: st, Limiter: lim, Generator: gen, Mentors: reg})
//	res, err := svc.Send(ctx, chat.SendRequest{Message: "What does John 3:16 say?"})
package chat
