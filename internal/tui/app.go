// Package tui is a terminal client for a docchat server.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/mayhapottabi/docchat/internal/client"
	"github.com/mayhapottabi/docchat/internal/rag"
)

// API is the part of the server API the TUI uses.
type API interface {
	ListDocuments(ctx context.Context) ([]client.Document, error)
	Upload(ctx context.Context, filename string, data []byte) (*client.UploadResult, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, id uuid.UUID) ([]client.Message, error)
	Chat(ctx context.Context, documentID uuid.UUID, message string, history []rag.Turn, onToken func(string)) (string, error)
}

var _ API = (*client.Client)(nil)

type page int

const (
	pageDocuments page = iota
	pageChat
)

// openChatMsg switches to the chat page for a document.
type openChatMsg struct{ doc client.Document }

// closeChatMsg returns to the document list.
type closeChatMsg struct{}

// App is the root model. It owns the document list and, while open, one
// chat.
type App struct {
	ctx  context.Context
	api  API
	page page

	documentsView *DocumentsView
	chatView      *ChatView

	width  int
	height int
}

// NewApp creates the root model.
func NewApp(ctx context.Context, api API) *App {
	return &App{
		ctx:           ctx,
		api:           api,
		documentsView: NewDocumentsView(ctx, api),
		width:         80,
		height:        24,
	}
}

// Init loads the document list.
func (a *App) Init() tea.Cmd {
	return a.documentsView.Init()
}

// Update routes messages to the active page.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.documentsView.SetSize(msg.Width, msg.Height-1)
		if a.chatView != nil {
			a.chatView.SetSize(msg.Width, msg.Height-1)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if a.chatView != nil {
				a.chatView.Close()
			}
			return a, tea.Quit
		}

	case openChatMsg:
		a.chatView = NewChatView(a.ctx, a.api, msg.doc)
		a.chatView.SetSize(a.width, a.height-1)
		a.page = pageChat
		return a, a.chatView.Init()

	case closeChatMsg:
		if a.chatView != nil {
			a.chatView.Close()
		}
		a.chatView = nil
		a.page = pageDocuments
		return a, a.documentsView.Reload()

	case historyLoadedMsg, streamTokenMsg, streamDoneMsg:
		if a.chatView == nil {
			return a, nil
		}
		return a, a.chatView.Update(msg)
	}

	if a.page == pageChat && a.chatView != nil {
		return a, a.chatView.Update(msg)
	}
	return a, a.documentsView.Update(msg)
}

// View renders the active page above a one-line title bar.
func (a *App) View() string {
	title := titleStyle.Render(" docchat ")
	body := a.documentsView.View()
	if a.page == pageChat && a.chatView != nil {
		title += dimStyle.Render(fmt.Sprintf("  %s", a.chatView.doc.Name))
		body = a.chatView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, api API) error {
	p := tea.NewProgram(NewApp(ctx, api), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run tui: %w", err)
	}
	return nil
}
