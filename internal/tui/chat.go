package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mayhapottabi/docchat/internal/client"
	"github.com/mayhapottabi/docchat/internal/db"
	"github.com/mayhapottabi/docchat/internal/rag"
)

const maxQuestionChars = 2000

type historyLoadedMsg struct {
	messages []client.Message
	err      error
}

type streamTokenMsg struct{ token string }

type streamDoneMsg struct {
	answer string
	err    error
}

// ChatView is a conversation about one document. Answers stream in token
// by token; a question and its answer join the history only when the
// stream ends with done, matching what the server persists.
type ChatView struct {
	ctx context.Context
	api API
	doc client.Document

	turns     []rag.Turn
	question  string
	pending   strings.Builder
	streaming bool
	err       error

	events chan tea.Msg
	cancel context.CancelFunc

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
}

// NewChatView creates a chat for doc.
func NewChatView(ctx context.Context, api API, doc client.Document) *ChatView {
	input := textinput.New()
	input.Placeholder = "Ask a question about this document..."
	input.Prompt = "> "
	input.CharLimit = maxQuestionChars
	input.Focus()

	return &ChatView{
		ctx:      ctx,
		api:      api,
		doc:      doc,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:    80,
		height:   23,
	}
}

// Init loads the saved conversation.
func (cv *ChatView) Init() tea.Cmd {
	id := cv.doc.ID
	return tea.Batch(textinput.Blink, func() tea.Msg {
		msgs, err := cv.api.Messages(cv.ctx, id)
		return historyLoadedMsg{messages: msgs, err: err}
	})
}

// SetSize sets the drawable area.
func (cv *ChatView) SetSize(width, height int) {
	cv.width, cv.height = width, height
	cv.viewport.Width = width
	cv.viewport.Height = max(3, height-4)
	cv.input.Width = max(10, width-4)
	cv.refresh()
}

// Close stops an answer in progress.
func (cv *ChatView) Close() {
	if cv.cancel != nil {
		cv.cancel()
		cv.cancel = nil
	}
}

// Update handles input and stream events.
func (cv *ChatView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.err != nil {
			cv.err = msg.err
		} else if len(cv.turns) == 0 {
			for _, m := range msg.messages {
				cv.turns = append(cv.turns, rag.Turn{Role: m.Role, Content: m.Content})
			}
		}
		cv.refresh()
		return nil

	case streamTokenMsg:
		cv.pending.WriteString(msg.token)
		cv.refresh()
		return cv.waitForEvent()

	case streamDoneMsg:
		cv.finish(msg)
		return nil

	case spinner.TickMsg:
		if !cv.streaming {
			return nil
		}
		var cmd tea.Cmd
		cv.spinner, cmd = cv.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			cv.Close()
			return func() tea.Msg { return closeChatMsg{} }
		case tea.KeyEnter:
			return cv.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			cv.viewport, cmd = cv.viewport.Update(msg)
			return cmd
		}
	}

	var cmd tea.Cmd
	cv.input, cmd = cv.input.Update(msg)
	return cmd
}

func (cv *ChatView) submit() tea.Cmd {
	question := strings.TrimSpace(cv.input.Value())
	if question == "" || cv.streaming {
		return nil
	}

	cv.input.SetValue("")
	cv.question = question
	cv.pending.Reset()
	cv.streaming = true
	cv.err = nil

	history := make([]rag.Turn, len(cv.turns))
	copy(history, cv.turns)

	ctx, cancel := context.WithCancel(cv.ctx)
	cv.cancel = cancel
	events := make(chan tea.Msg, 64)
	cv.events = events

	go func() {
		defer close(events)
		send := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}
		answer, err := cv.api.Chat(ctx, cv.doc.ID, question, history, func(tok string) {
			send(streamTokenMsg{token: tok})
		})
		send(streamDoneMsg{answer: answer, err: err})
	}()

	cv.refresh()
	return tea.Batch(cv.waitForEvent(), cv.spinner.Tick)
}

func (cv *ChatView) waitForEvent() tea.Cmd {
	events := cv.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (cv *ChatView) finish(msg streamDoneMsg) {
	cv.streaming = false
	cv.events = nil
	if cv.cancel != nil {
		cv.cancel()
		cv.cancel = nil
	}

	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			cv.err = msg.err
		}
	} else {
		cv.turns = append(cv.turns,
			rag.Turn{Role: db.RoleUser, Content: cv.question},
			rag.Turn{Role: db.RoleAssistant, Content: msg.answer},
		)
	}

	cv.question = ""
	cv.pending.Reset()
	cv.refresh()
}

// refresh re-renders the transcript into the viewport and scrolls to the
// end.
func (cv *ChatView) refresh() {
	wrap := lipgloss.NewStyle().Width(max(10, cv.width-2))

	var b strings.Builder
	for _, t := range cv.turns {
		writeTurn(&b, wrap, t.Role, t.Content)
	}
	if cv.question != "" {
		writeTurn(&b, wrap, db.RoleUser, cv.question)
		writeTurn(&b, wrap, db.RoleAssistant, cv.pending.String())
	}
	if b.Len() == 0 {
		b.WriteString(dimStyle.Render("No messages yet."))
	}

	cv.viewport.SetContent(b.String())
	cv.viewport.GotoBottom()
}

func writeTurn(b *strings.Builder, wrap lipgloss.Style, role, content string) {
	if role == db.RoleUser {
		b.WriteString(userStyle.Render("You") + "\n")
	} else {
		b.WriteString(assistantStyle.Render("Assistant") + "\n")
	}
	b.WriteString(wrap.Render(content) + "\n\n")
}

// View renders the transcript, the input line and a status line.
func (cv *ChatView) View() string {
	status := helpStyle.Render("enter: send | pgup/pgdn: scroll | esc: back")
	switch {
	case cv.streaming:
		status = cv.spinner.View() + statusStyle.Render(" Answering...")
	case cv.err != nil:
		status = errorStyle.Render("Error: " + describe(cv.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		cv.viewport.View(),
		"",
		cv.input.View(),
		status,
	)
}
