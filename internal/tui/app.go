// Package tui is the terminal presentation of the release panel. It follows
// The Elm Architecture: the App model holds the presentation state, Update
// reacts to messages, and View renders the engine's ViewModel to a string.
//
// All release semantics live in the engine; the TUI only moves keystrokes in
// and envelopes back and forth to the host dispatcher.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/clean-dependency-project/cdpanel/internal/engine"
	"github.com/clean-dependency-project/cdpanel/internal/protocol"
)

// tickInterval is how often the engine's clock is advanced. The engine gates
// its own branch poll and timeout sweeps internally.
const tickInterval = 500 * time.Millisecond

// Dispatcher answers the panel's outbound envelopes. The in-process host
// satisfies it directly; tests substitute their own.
type Dispatcher interface {
	Bootstrap(ctx context.Context) []protocol.Envelope
	Handle(ctx context.Context, env protocol.Envelope) []protocol.Envelope
}

// focusTarget identifies which control owns keyboard input.
type focusTarget int

const (
	focusCatalog focusTarget = iota
	focusVersion
	focusPostfix
	focusGitHubCheck
	focusCatalogCheck
	focusCreate
	focusRefresh
	focusCount
)

type tickMsg time.Time

// hostReplyMsg carries the host's answers to one dispatched request.
type hostReplyMsg struct {
	envelopes []protocol.Envelope
}

// offeringItem implements list.Item for the catalog picker.
type offeringItem struct {
	id   string
	name string
}

func (i offeringItem) Title() string       { return i.name }
func (i offeringItem) Description() string { return "Offering ID: " + i.id }
func (i offeringItem) FilterValue() string { return i.name }

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithContext overrides the context handed to the dispatcher.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the main application model.
type App struct {
	ctx    context.Context
	log    *slog.Logger
	engine *engine.Engine
	host   Dispatcher

	versionInput textinput.Model
	postfixInput textinput.Model
	catalogList  list.Model

	focus          focusTarget
	publishCatalog bool
	releaseGitHub  bool

	// A pending confirmation takes over the keyboard until answered.
	confirm    *protocol.ShowConfirmation
	confirmID  int64
	confirming bool

	width  int
	height int
}

// NewApp creates the panel TUI around an engine and a host dispatcher.
func NewApp(log *slog.Logger, eng *engine.Engine, host Dispatcher, opts ...AppOption) *App {
	versionInput := textinput.New()
	versionInput.Placeholder = "1.0.0"
	versionInput.CharLimit = 32
	versionInput.Width = 24

	postfixInput := textinput.New()
	postfixInput.Placeholder = "ce"
	postfixInput.CharLimit = 16
	postfixInput.Width = 24

	catalogList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	catalogList.Title = "Catalogs"
	catalogList.SetShowStatusBar(false)
	catalogList.SetFilteringEnabled(false)
	catalogList.SetShowHelp(false)

	app := &App{
		ctx:            context.Background(),
		log:            log,
		engine:         eng,
		host:           host,
		versionInput:   versionInput,
		postfixInput:   postfixInput,
		catalogList:    catalogList,
		focus:          focusCatalog,
		publishCatalog: true,
		releaseGitHub:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Init starts the bootstrap fetch, the engine's opening requests, and the
// clock.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.bootstrapCmd(),
		a.scheduleTick(),
	}
	cmds = append(cmds, a.dispatch(a.engine.Start())...)
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.catalogList.SetSize(max(20, msg.Width/3), max(6, msg.Height-16))
		return a, nil

	case tickMsg:
		cmds := a.dispatch(a.engine.Tick())
		cmds = append(cmds, a.scheduleTick())
		a.syncFromEngine()
		return a, tea.Batch(cmds...)

	case hostReplyMsg:
		var cmds []tea.Cmd
		for _, env := range msg.envelopes {
			cmds = append(cmds, a.dispatch(a.engine.HandleInbound(env))...)
		}
		a.syncFromEngine()
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, a.updateFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirming {
		return a.handleConfirmKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.setFocus((a.focus + 1) % focusCount)
		return a, nil
	case "shift+tab":
		a.setFocus((a.focus + focusCount - 1) % focusCount)
		return a, nil
	case "esc":
		a.engine.ClearError(true)
		a.syncFromEngine()
		return a, nil
	case "ctrl+r":
		return a, tea.Batch(a.dispatch(a.engine.Refresh())...)
	case " ":
		switch a.focus {
		case focusGitHubCheck:
			a.releaseGitHub = !a.releaseGitHub
			return a, nil
		case focusCatalogCheck:
			a.publishCatalog = !a.publishCatalog
			return a, nil
		}
	case "enter":
		switch a.focus {
		case focusCatalog:
			if item, ok := a.catalogList.SelectedItem().(offeringItem); ok {
				return a, tea.Batch(a.dispatch(a.engine.SelectCatalog(item.id))...)
			}
			return a, nil
		case focusCreate:
			return a, a.submitCreate()
		case focusRefresh:
			return a, tea.Batch(a.dispatch(a.engine.Refresh())...)
		}
	}

	return a, a.updateFocused(msg)
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		return a, a.answerConfirmation(true)
	case "n", "N", "esc":
		return a, a.answerConfirmation(false)
	case "ctrl+c":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) answerConfirmation(accepted bool) tea.Cmd {
	a.confirming = false
	a.confirm = nil
	env := protocol.MustNew(protocol.KindConfirmationResult, a.confirmID, protocol.ConfirmationResult{Accepted: accepted})
	return tea.Batch(a.dispatch(a.engine.HandleInbound(env))...)
}

func (a *App) submitCreate() tea.Cmd {
	vm := a.engine.Render()
	if !vm.CreateEnabled {
		return nil
	}
	return tea.Batch(a.dispatch(a.engine.SubmitCreate(a.publishCatalog, a.releaseGitHub))...)
}

// updateFocused routes a message to the focused component and pushes field
// edits into the engine.
func (a *App) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.focus {
	case focusCatalog:
		a.catalogList, cmd = a.catalogList.Update(msg)
	case focusVersion:
		a.versionInput, cmd = a.versionInput.Update(msg)
		a.engine.SetVersionField(a.versionInput.Value())
	case focusPostfix:
		a.postfixInput, cmd = a.postfixInput.Update(msg)
		a.engine.SetPostfixField(a.postfixInput.Value())
	}
	return cmd
}

func (a *App) setFocus(target focusTarget) {
	a.focus = target
	a.versionInput.Blur()
	a.postfixInput.Blur()
	switch target {
	case focusVersion:
		a.versionInput.Focus()
	case focusPostfix:
		a.postfixInput.Focus()
	}
}

// syncFromEngine pulls engine-owned values back into the components: the
// suggestion may have filled a field, and the offering list may have changed.
func (a *App) syncFromEngine() {
	vm := a.engine.Render()

	if a.versionInput.Value() != vm.VersionField {
		a.versionInput.SetValue(vm.VersionField)
	}
	if a.postfixInput.Value() != vm.PostfixField {
		a.postfixInput.SetValue(vm.PostfixField)
	}

	if offeringsChanged(a.catalogList.Items(), vm.Offerings) {
		items := make([]list.Item, len(vm.Offerings))
		for i, off := range vm.Offerings {
			items[i] = offeringItem{id: off.ID, name: off.Name}
		}
		a.catalogList.SetItems(items)
		for i, off := range vm.Offerings {
			if off.ID == vm.SelectedCatalogID {
				a.catalogList.Select(i)
			}
		}
	}
}

// offeringsChanged compares the picker's items against the engine's offering
// list. A refresh can rename or replace an offering without changing the
// count, so identity and name both matter.
func offeringsChanged(items []list.Item, offerings []protocol.CatalogInfo) bool {
	if len(items) != len(offerings) {
		return true
	}
	for i, item := range items {
		off, ok := item.(offeringItem)
		if !ok {
			return true
		}
		if off.id != offerings[i].ID || off.name != offerings[i].Name {
			return true
		}
	}
	return false
}

// dispatch turns the engine's outbound envelopes into commands. Confirmation
// requests never reach the host; the TUI owns the modal.
func (a *App) dispatch(envs []protocol.Envelope) []tea.Cmd {
	var cmds []tea.Cmd
	for _, env := range envs {
		if env.Kind == protocol.KindShowConfirmation {
			var payload protocol.ShowConfirmation
			if err := env.Unmarshal(&payload); err != nil {
				a.logError("malformed confirmation payload", err)
				continue
			}
			a.confirm = &payload
			a.confirmID = env.ID
			a.confirming = true
			continue
		}
		cmds = append(cmds, a.hostCmd(env))
	}
	return cmds
}

func (a *App) hostCmd(env protocol.Envelope) tea.Cmd {
	return func() tea.Msg {
		return hostReplyMsg{envelopes: a.host.Handle(a.ctx, env)}
	}
}

func (a *App) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		return hostReplyMsg{envelopes: a.host.Bootstrap(a.ctx)}
	}
}

func (a *App) scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) logError(msg string, err error) {
	if a.log == nil {
		return
	}
	a.log.Error(msg, "error", err)
}

// Run starts the bubbletea program and blocks until it exits.
func Run(app *App) error {
	program := tea.NewProgram(app, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
