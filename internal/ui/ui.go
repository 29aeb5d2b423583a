package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bz888/agentchat/internal/api"
	"github.com/bz888/agentchat/internal/chat"
	"github.com/bz888/agentchat/internal/logger"
)

const (
	inputHeight = 5
	hintText    = "[gray]Enter send  Alt+Enter newline  Ctrl+L clear  /help commands[-]"
	mainPage    = "main"
)

// Backend is the read-only side of the agent API plus conversation cleanup.
type Backend interface {
	HealthCheck(ctx context.Context) (*api.HealthResponse, error)
	ListModels(ctx context.Context) ([]api.Model, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Dictator turns speech into text.
type Dictator interface {
	Dictate(ctx context.Context) (string, error)
}

type Options struct {
	Store   *chat.Store
	Backend Backend
	// Voice is nil when dictation is unavailable.
	Voice Dictator
	// Dev shows the debug console from the start.
	Dev bool
}

// View renders the conversation and forwards user intents to the store.
// Fields below the widgets are only touched on the tview event loop.
type View struct {
	app     *tview.Application
	store   *chat.Store
	backend Backend
	voice   Dictator
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// queue runs f on the event loop; async runs f off it.
	queue func(f func())
	async func(f func())

	pages        *tview.Pages
	root         *tview.Flex
	main         *tview.Flex
	header       *tview.TextView
	clearButton  *tview.Button
	banner       *tview.TextView
	conversation *tview.TextView
	input        *tview.TextArea
	sendButton   *tview.Button
	footer       *tview.TextView
	debugConsole *tview.TextView

	state     chat.State
	dictating bool
	health    string
	showDebug bool
}

func New(opts Options) *View {
	v := &View{
		app:       tview.NewApplication(),
		store:     opts.Store,
		backend:   opts.Backend,
		voice:     opts.Voice,
		log:       logger.New("views"),
		showDebug: opts.Dev,
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	// QueueUpdateDraw blocks until the loop runs f, and the store may publish
	// from the loop itself. Snapshot versions restore the order.
	v.queue = func(f func()) { go v.app.QueueUpdateDraw(f) }
	v.async = func(f func()) { go f() }

	v.app.EnablePaste(true)
	v.app.EnableMouse(true)

	v.debugConsole = v.initDebugConsole()
	v.header = tview.NewTextView().SetDynamicColors(true)
	v.clearButton = tview.NewButton("Clear Chat").SetSelectedFunc(v.reset)
	v.banner = tview.NewTextView().SetDynamicColors(true)
	v.banner.SetTextColor(tcell.ColorWhite).SetBackgroundColor(tcell.ColorDarkRed)
	v.conversation = v.initChatViewer()
	v.input = v.initChatInput()
	v.sendButton = tview.NewButton("Send").SetSelectedFunc(v.submitInput)
	v.footer = tview.NewTextView().SetDynamicColors(true).SetText(hintText)

	v.layout()

	v.store.Subscribe(func(st chat.State) {
		v.queue(func() { v.applyState(st) })
	})
	v.applyState(v.store.State())
	return v
}

func (v *View) initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)

	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			v.app.SetFocus(v.input)
			return nil
		}
		return event
	})
	return textView
}

func (v *View) initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea().SetPlaceholder("Type your message here...")
	textArea.SetTitle("Message").SetBorder(true)
	textArea.SetInputCapture(v.inputCapture)
	textArea.SetChangedFunc(v.applyAffordances)
	return textArea
}

func (v *View) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			v.app.Draw()
		}).
		SetDynamicColors(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.SetMaxLines(500)
	return console
}

func (v *View) layout() {
	top := tview.NewFlex().
		AddItem(v.header, 0, 1, false).
		AddItem(v.clearButton, 12, 0, false)

	bottom := tview.NewFlex().
		AddItem(v.input, 0, 1, true).
		AddItem(v.sendButton, 8, 0, false)

	v.main = tview.NewFlex().AddItem(v.conversation, 0, 2, false)
	if v.showDebug {
		v.main.AddItem(v.debugConsole, 0, 1, false)
	}

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 1, 0, false).
		AddItem(v.banner, 0, 0, false).
		AddItem(v.main, 0, 1, false).
		AddItem(bottom, inputHeight, 0, true).
		AddItem(v.footer, 1, 0, false)

	v.pages = tview.NewPages().AddPage(mainPage, v.root, true, true)
}

// DebugConsole is the writer the logger mirrors to in dev mode.
func (v *View) DebugConsole() *tview.TextView {
	return v.debugConsole
}

// Run blocks until the user quits.
func (v *View) Run() error {
	v.async(v.refreshHealth)
	return v.app.SetRoot(v.pages, true).SetFocus(v.input).Run()
}

func (v *View) Stop() {
	v.cancel()
	v.app.Stop()
}

func (v *View) inputCapture(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		if event.Modifiers()&tcell.ModAlt != 0 {
			// let the text area insert the newline
			return tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
		}
		v.submitInput()
		return nil
	case tcell.KeyESC:
		if !v.state.Empty() {
			v.app.SetFocus(v.conversation)
		}
		return nil
	case tcell.KeyCtrlL:
		v.reset()
		return nil
	}
	return event
}

// busy is true while a reply or a dictation is outstanding.
func (v *View) busy() bool {
	return v.dictating || v.state.Loading
}

func (v *View) canSubmit(text string) bool {
	return !v.busy() && strings.TrimSpace(text) != ""
}

func (v *View) submitInput() {
	text := v.input.GetText()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	if name, arg, ok := parseCommand(trimmed); ok {
		v.input.SetText("", true)
		v.runCommand(name, arg)
		return
	}

	if !v.canSubmit(text) {
		return
	}
	v.input.SetText("", true)
	v.submit(trimmed)
}

// submit appends the message on the event loop so a reset issued right
// after it always sees the exchange. Only the network call runs off the loop.
func (v *View) submit(text string) {
	ex, err := v.store.Begin(v.ctx, text)
	if err != nil {
		v.log.Warn("submit rejected:", err)
		return
	}
	v.setNotice("")
	v.applyState(v.store.State())
	v.async(ex.Send)
}

func (v *View) reset() {
	previous := v.state.SessionID
	if err := v.store.Dispatch(v.ctx, chat.ResetIntent{}); err != nil {
		v.log.Error("reset failed:", err)
		return
	}
	v.setNotice("")

	if previous == "" || v.backend == nil {
		return
	}
	v.async(func() {
		if err := v.backend.DeleteConversation(v.ctx, previous); err != nil {
			v.log.Warnf("failed to delete conversation %s: %s", previous, err)
			return
		}
		v.log.Info("deleted conversation", previous)
	})
}

func (v *View) applyState(st chat.State) {
	if st.Version < v.state.Version {
		return
	}
	v.state = st
	v.render()
}

func (v *View) render() {
	v.header.SetText(renderHeader(v.state, v.health))

	if text := bannerText(v.state.Err); text != "" {
		v.banner.SetText(" " + text)
		v.root.ResizeItem(v.banner, 1, 0)
	} else {
		v.banner.SetText("")
		v.root.ResizeItem(v.banner, 0, 0)
	}

	v.conversation.SetText(renderConversation(v.state))
	v.conversation.ScrollToEnd()
	v.applyAffordances()
}

func (v *View) applyAffordances() {
	v.input.SetDisabled(v.busy())
	v.sendButton.SetDisabled(!v.canSubmit(v.input.GetText()))
}

// setNotice replaces the footer hint. An empty notice restores the hint.
func (v *View) setNotice(text string) {
	if text == "" {
		v.footer.SetText(hintText)
		return
	}
	v.footer.SetText(text)
}

func (v *View) refreshHealth() {
	resp, err := v.backend.HealthCheck(v.ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		v.log.Warn("health check failed:", err)
	}
	health := renderHealth(resp, err)
	v.queue(func() {
		v.health = health
		v.render()
	})
}

func (v *View) toggleDebugConsole() {
	v.showDebug = !v.showDebug
	if v.showDebug {
		v.main.AddItem(v.debugConsole, 0, 1, false)
		v.setNotice("Debug console enabled")
	} else {
		v.main.RemoveItem(v.debugConsole)
		v.setNotice("Debug console disabled")
	}
}
