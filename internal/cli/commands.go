// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
}

// Rest joins the arguments back into free text.
func (c Command) Rest() string {
	return strings.Join(c.Args, " ")
}

// commandAliases maps short forms to canonical names.
var commandAliases = map[string]string{
	"h":    "help",
	"?":    "help",
	"q":    "quit",
	"exit": "quit",
	"s":    "status",
	"m":    "mentor",
	"ls":   "list",
	"o":    "open",
	"n":    "new",
}

// commandHelp is shown by /help, in display order.
var commandHelp = [][2]string{
	{"/help", "Show available commands"},
	{"/new [mentor]", "Start a new conversation"},
	{"/mentor [id|auto]", "Show or lock the mentor"},
	{"/mentors", "List available mentors"},
	{"/auto", "Route each message automatically"},
	{"/models", "List your chat models"},
	{"/model <n|id>", "Select a chat model"},
	{"/add <id> [label]", "Add a chat model"},
	{"/remove <n|id>", "Remove a chat model"},
	{"/list", "List conversations"},
	{"/open <n|id>", "Open a conversation"},
	{"/rename <title>", "Rename the current conversation"},
	{"/delete [n|id]", "Delete a conversation (default: current)"},
	{"/attach <path>", "Attach a file to the next message"},
	{"/history", "Reprint the current conversation"},
	{"/export [md|json|html]", "Export the current conversation to a file"},
	{"/reset", "Clear the chat and return to automatic routing"},
	{"/status", "Show session status"},
	{"/health", "Check the API"},
	{"/quit", "Exit"},
}

// ParseCommand splits a slash command line. ok is false for plain messages.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || line == "/" {
		return Command{}, false
	}
	fields := strings.Fields(line[1:])
	name := strings.ToLower(fields[0])
	if canonical, ok := commandAliases[name]; ok {
		name = canonical
	}
	return Command{Name: name, Args: fields[1:]}, true
}

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

// =============================================================================
// REPL STATE
// =============================================================================

// mentorLister lists the server's mentors for /mentors.
type mentorLister interface {
	ListMentors(ctx context.Context) ([]client.MentorInfo, error)
}

// repl executes chat input against a client session.
type repl struct {
	sess    *client.Session
	mentors mentorLister
	out     io.Writer
	md      *markdownRenderer
	width   int

	// pending files are sent with the next message.
	pending []model.FileMeta
}

func newREPL(sess *client.Session, mentors mentorLister, out io.Writer, width int) *repl {
	return &repl{
		sess:    sess,
		mentors: mentors,
		out:     out,
		md:      newMarkdownRenderer(width),
		width:   width,
	}
}

func (r *repl) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *repl) fail(err error) {
	r.println(styles.RenderError(errorText(err)))
}

// Handle processes one input line. It returns errQuit to end the session.
func (r *repl) Handle(ctx context.Context, line string) error {
	if cmd, ok := ParseCommand(line); ok {
		return r.run(ctx, cmd)
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}
	r.send(ctx, line)
	return nil
}

// send posts a message and prints the reply. Failures are reported with the
// generic send message; the session already rolled back.
func (r *repl) send(ctx context.Context, text string) {
	files := r.pending
	res, err := r.sess.SendMessage(ctx, text, files)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrSendInFlight):
			r.println(styles.RenderWarning("A message is already being sent."))
		case model.KindOf(err) == model.KindValidation || model.KindOf(err) == model.KindRateLimited:
			r.println(styles.RenderWarning(model.PublicMessage(err)))
		default:
			r.println(styles.RenderError(client.MsgSendFailed))
		}
		return
	}
	r.pending = nil
	last := model.HistoryItem{Role: model.RoleAssistant, Content: res.Reply}
	if n := len(res.History); n > 0 && res.History[n-1].Role == model.RoleAssistant {
		last = res.History[n-1]
	}
	if last.Mentor == "" {
		last.Mentor = res.MentorID
	}
	r.println(formatMessage(last, r.md))
}

func (r *repl) run(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case "help":
		r.printHelp()
	case "quit":
		return errQuit
	case "status":
		r.println(formatStatus(r.sess.Snapshot()))
	case "health":
		online := r.sess.CheckHealth(ctx)
		if online == client.OnlineYes {
			r.println(styles.RenderSuccess("API online"))
		} else {
			r.println(styles.RenderError("API offline"))
		}
	case "reset":
		r.pending = nil
		r.sess.ResetChat()
		r.println(styles.RenderInfo("Chat cleared. Mentor routing is automatic."))
	case "auto":
		r.sess.SetAuto()
		r.println(styles.RenderInfo("Mentor routing is automatic."))
	case "mentor":
		r.mentor(cmd)
	case "mentors":
		list, err := r.mentors.ListMentors(ctx)
		if err != nil {
			r.fail(err)
			return nil
		}
		r.println(formatMentors(list))
	case "new":
		conv, err := r.sess.StartNewConversation(ctx, cmd.Rest())
		if err != nil {
			r.fail(err)
			return nil
		}
		r.println(styles.RenderSuccess("Started a new conversation with " + mentorName(conv.MentorID) + "."))
	case "models":
		models, err := r.sess.LoadChatModels(ctx)
		if err != nil {
			r.fail(err)
			return nil
		}
		r.println(formatModels(models, r.sess.Snapshot().Model))
	case "model":
		r.selectModel(ctx, cmd)
	case "add":
		r.addModel(ctx, cmd)
	case "remove":
		r.removeModel(ctx, cmd)
	case "list":
		if err := r.sess.LoadConversations(ctx); err != nil {
			r.fail(err)
			return nil
		}
		v := r.sess.Snapshot()
		r.println(formatConversations(v.Conversations, v.ConversationID, r.width))
	case "open":
		r.open(ctx, cmd)
	case "rename":
		r.rename(ctx, cmd)
	case "delete":
		r.delete(ctx, cmd)
	case "attach":
		r.attach(cmd)
	case "history":
		r.printHistory()
	case "export":
		r.export(cmd)
	default:
		r.println(styles.RenderWarning(fmt.Sprintf("Unknown command /%s. Type /help for commands.", cmd.Name)))
	}
	return nil
}

func (r *repl) printHelp() {
	r.println(TitleStyle.Render("Commands"))
	for _, h := range commandHelp {
		fmt.Fprintf(r.out, "  %s  %s\n", CommandStyle.Render(fmt.Sprintf("%-20s", h[0])), h[1])
	}
}

func (r *repl) printHistory() {
	v := r.sess.Snapshot()
	if len(v.Messages) == 0 {
		r.println(DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range v.Messages {
		r.println(formatMessage(m, r.md))
		r.println("")
	}
}

func (r *repl) mentor(cmd Command) {
	if len(cmd.Args) == 0 {
		v := r.sess.Snapshot()
		if v.Mode == "auto" {
			r.println("Mentor: automatic (last: " + theme().MentorBadge(string(v.Mentor), mentorName(string(v.Mentor))) + ")")
		} else {
			r.println("Mentor: " + theme().MentorBadge(string(v.Mentor), mentorName(string(v.Mentor))))
		}
		return
	}
	r.sess.SetMentor(cmd.Args[0])
	v := r.sess.Snapshot()
	if v.Mode == "auto" {
		r.println(styles.RenderInfo("Mentor routing is automatic."))
		return
	}
	r.println(styles.RenderInfo("Mentor locked to " + mentorName(string(v.Mentor)) + "."))
}

// =============================================================================
// MODEL COMMANDS
// =============================================================================

// resolveModel accepts a 1-based index into models or a model id.
func resolveModel(models []model.ChatModel, arg string) (string, bool) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(models) {
			return models[n-1].ID, true
		}
		return "", false
	}
	return arg, model.ContainsChatModel(models, arg)
}

func (r *repl) ensureModels(ctx context.Context) ([]model.ChatModel, error) {
	if models := r.sess.Snapshot().Models; len(models) > 0 {
		return models, nil
	}
	return r.sess.LoadChatModels(ctx)
}

func (r *repl) selectModel(ctx context.Context, cmd Command) {
	if len(cmd.Args) != 1 {
		r.println(styles.RenderWarning("Usage: /model <n|id>"))
		return
	}
	models, err := r.ensureModels(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	id, ok := resolveModel(models, cmd.Args[0])
	if !ok {
		r.println(styles.RenderWarning(client.MsgUnknownModel))
		return
	}
	if err := r.sess.SelectChatModel(id); err != nil {
		r.fail(err)
		return
	}
	r.println(styles.RenderInfo("Using " + id + "."))
}

func (r *repl) addModel(ctx context.Context, cmd Command) {
	if len(cmd.Args) == 0 {
		r.println(styles.RenderWarning("Usage: /add <id> [label]"))
		return
	}
	if _, err := r.ensureModels(ctx); err != nil {
		r.fail(err)
		return
	}
	label := strings.Join(cmd.Args[1:], " ")
	models, err := r.sess.AddChatModel(ctx, cmd.Args[0], label)
	if err != nil {
		r.fail(err)
		return
	}
	r.println(formatModels(models, r.sess.Snapshot().Model))
}

func (r *repl) removeModel(ctx context.Context, cmd Command) {
	if len(cmd.Args) != 1 {
		r.println(styles.RenderWarning("Usage: /remove <n|id>"))
		return
	}
	models, err := r.ensureModels(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	id, ok := resolveModel(models, cmd.Args[0])
	if !ok {
		r.println(styles.RenderWarning(client.MsgUnknownModel))
		return
	}
	models, err = r.sess.RemoveChatModel(ctx, id)
	if err != nil {
		r.fail(err)
		return
	}
	r.println(formatModels(models, r.sess.Snapshot().Model))
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

// resolveConversation accepts a 1-based index into the last listing or an id.
func resolveConversation(list []model.ConversationSummary, arg string) string {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(list) {
		return list[n-1].ID
	}
	return arg
}

func (r *repl) open(ctx context.Context, cmd Command) {
	if len(cmd.Args) != 1 {
		r.println(styles.RenderWarning("Usage: /open <n|id>"))
		return
	}
	id := resolveConversation(r.sess.Snapshot().Conversations, cmd.Args[0])
	if err := r.sess.FetchExistingConversation(ctx, id); err != nil {
		r.println(styles.RenderError(client.MsgLoadFailed))
		return
	}
	r.printHistory()
}

func (r *repl) rename(ctx context.Context, cmd Command) {
	v := r.sess.Snapshot()
	if v.ConversationID == "" {
		r.println(styles.RenderWarning("No conversation is open."))
		return
	}
	if len(cmd.Args) == 0 {
		r.println(styles.RenderWarning("Usage: /rename <title>"))
		return
	}
	conv, err := r.sess.RenameConversation(ctx, v.ConversationID, cmd.Rest())
	if err != nil {
		r.fail(err)
		return
	}
	r.println(styles.RenderSuccess("Renamed to " + conv.DisplayTitle() + "."))
}

func (r *repl) delete(ctx context.Context, cmd Command) {
	v := r.sess.Snapshot()
	id := v.ConversationID
	if len(cmd.Args) > 0 {
		id = resolveConversation(v.Conversations, cmd.Args[0])
	}
	if id == "" {
		r.println(styles.RenderWarning("Usage: /delete [n|id]"))
		return
	}
	if err := r.sess.DeleteConversation(ctx, id); err != nil {
		r.fail(err)
		return
	}
	r.println(styles.RenderSuccess("Conversation deleted."))
}

// attach records file metadata for the next message. File contents are not
// uploaded; the name and type steer mentor routing.
func (r *repl) attach(cmd Command) {
	if len(cmd.Args) == 0 {
		r.println(styles.RenderWarning("Usage: /attach <path>"))
		return
	}
	path := cmd.Rest()
	info, err := os.Stat(path)
	if err != nil {
		r.println(styles.RenderError("Cannot attach " + path + "."))
		return
	}
	if info.IsDir() {
		r.println(styles.RenderError(path + " is a directory."))
		return
	}
	meta := model.FileMeta{
		Name: filepath.Base(path),
		Type: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size: info.Size(),
	}
	r.pending = append(r.pending, meta)
	r.println(styles.RenderInfo(fmt.Sprintf("Attached %s (%d bytes). It will be sent with your next message.", meta.Name, meta.Size)))
}

// export writes the current conversation to the working directory.
func (r *repl) export(cmd Command) {
	v := r.sess.Snapshot()
	if v.ConversationID == "" || len(v.Messages) == 0 {
		r.println(styles.RenderWarning("No conversation is open."))
		return
	}
	format := "md"
	if len(cmd.Args) > 0 {
		format = cmd.Args[0]
	}
	path, err := exportConversation(v, format, ".", true)
	if err != nil {
		r.fail(err)
		return
	}
	r.println(styles.RenderSuccess("Exported to " + path))
}
