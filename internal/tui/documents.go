package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mayhapottabi/docchat/internal/client"
)

type documentsLoadedMsg struct {
	docs []client.Document
	err  error
}

type documentUploadedMsg struct {
	result *client.UploadResult
	err    error
}

type documentDeletedMsg struct {
	name string
	err  error
}

// DocumentsView lists the caller's documents and uploads new ones.
type DocumentsView struct {
	ctx context.Context
	api API

	documents []client.Document
	selected  int
	loading   bool
	status    string
	err       error

	// choosingFile is set while the path prompt is open.
	choosingFile bool
	pathInput    textinput.Model

	width  int
	height int
}

// NewDocumentsView creates the document list.
func NewDocumentsView(ctx context.Context, api API) *DocumentsView {
	input := textinput.New()
	input.Placeholder = "path/to/file.pdf"
	input.Prompt = "Upload: "
	input.CharLimit = 4096

	return &DocumentsView{ctx: ctx, api: api, pathInput: input, width: 80, height: 23}
}

// Init loads the list.
func (dv *DocumentsView) Init() tea.Cmd {
	return dv.Reload()
}

// SetSize sets the drawable area.
func (dv *DocumentsView) SetSize(width, height int) {
	dv.width, dv.height = width, height
	dv.pathInput.Width = max(10, width-12)
}

// Reload fetches the list again.
func (dv *DocumentsView) Reload() tea.Cmd {
	dv.loading = true
	return func() tea.Msg {
		docs, err := dv.api.ListDocuments(dv.ctx)
		return documentsLoadedMsg{docs: docs, err: err}
	}
}

// Update handles list navigation and the upload prompt.
func (dv *DocumentsView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case documentsLoadedMsg:
		dv.loading = false
		dv.err = msg.err
		if msg.err == nil {
			dv.documents = msg.docs
			dv.selected = min(dv.selected, max(0, len(dv.documents)-1))
		}
		return nil

	case documentUploadedMsg:
		dv.loading = false
		if msg.err != nil {
			dv.err = msg.err
			dv.status = ""
			return nil
		}
		dv.err = nil
		dv.status = fmt.Sprintf("Uploaded %s (%d chunks)", msg.result.Name, msg.result.ChunkCount)
		dv.selected = 0
		return dv.Reload()

	case documentDeletedMsg:
		dv.loading = false
		if msg.err != nil {
			dv.err = msg.err
			return nil
		}
		dv.err = nil
		dv.status = "Deleted " + msg.name
		return dv.Reload()

	case tea.KeyMsg:
		if dv.choosingFile {
			return dv.updatePathInput(msg)
		}
		return dv.handleKey(msg)
	}
	return nil
}

func (dv *DocumentsView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "j", "down":
		if dv.selected < len(dv.documents)-1 {
			dv.selected++
		}
	case "k", "up":
		if dv.selected > 0 {
			dv.selected--
		}
	case "enter":
		if doc, ok := dv.current(); ok {
			return func() tea.Msg { return openChatMsg{doc: doc} }
		}
	case "u", "a":
		dv.choosingFile = true
		dv.pathInput.SetValue("")
		return dv.pathInput.Focus()
	case "d":
		if doc, ok := dv.current(); ok && !dv.loading {
			return dv.deleteDocument(doc)
		}
	case "r":
		return dv.Reload()
	}
	return nil
}

func (dv *DocumentsView) updatePathInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		dv.choosingFile = false
		dv.pathInput.Blur()
		return nil
	case tea.KeyEnter:
		path := strings.TrimSpace(dv.pathInput.Value())
		dv.choosingFile = false
		dv.pathInput.Blur()
		if path == "" {
			return nil
		}
		return dv.uploadFile(path)
	}

	var cmd tea.Cmd
	dv.pathInput, cmd = dv.pathInput.Update(msg)
	return cmd
}

func (dv *DocumentsView) current() (client.Document, bool) {
	if dv.selected < 0 || dv.selected >= len(dv.documents) {
		return client.Document{}, false
	}
	return dv.documents[dv.selected], true
}

func (dv *DocumentsView) uploadFile(path string) tea.Cmd {
	dv.loading = true
	dv.status = "Uploading " + filepath.Base(path) + "..."
	return func() tea.Msg {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return documentUploadedMsg{err: errors.New("only PDF files can be uploaded")}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return documentUploadedMsg{err: fmt.Errorf("failed to read file: %w", err)}
		}
		result, err := dv.api.Upload(dv.ctx, filepath.Base(path), data)
		return documentUploadedMsg{result: result, err: err}
	}
}

func (dv *DocumentsView) deleteDocument(doc client.Document) tea.Cmd {
	dv.loading = true
	dv.status = "Deleting " + doc.Name + "..."
	id := doc.ID
	return func() tea.Msg {
		return documentDeletedMsg{name: doc.Name, err: dv.api.DeleteDocument(dv.ctx, id)}
	}
}

// View renders the list.
func (dv *DocumentsView) View() string {
	var b strings.Builder

	b.WriteString("\n")
	switch {
	case dv.loading && len(dv.documents) == 0:
		b.WriteString(dimStyle.Render("  Loading documents...") + "\n")
	case len(dv.documents) == 0:
		b.WriteString(dimStyle.Render("  No documents yet. Press u to upload a PDF.") + "\n")
	}

	rows := max(1, dv.height-6)
	start := 0
	if dv.selected >= rows {
		start = dv.selected - rows + 1
	}
	for i := start; i < len(dv.documents) && i < start+rows; i++ {
		doc := dv.documents[i]
		line := fmt.Sprintf("%-40s %s", truncate(doc.Name, 40), doc.CreatedAt.Local().Format("2006-01-02 15:04"))
		if i == dv.selected {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n")
	if dv.choosingFile {
		b.WriteString(dv.pathInput.View() + "\n")
	}
	if dv.err != nil {
		b.WriteString(errorStyle.Render("Error: "+describe(dv.err)) + "\n")
	} else if dv.status != "" {
		b.WriteString(statusStyle.Render(dv.status) + "\n")
	}
	b.WriteString(helpStyle.Render("enter: chat | u: upload | d: delete | r: reload | q: quit"))
	return b.String()
}

// describe prefers the server's own error text.
func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
