package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/bz888/agentchat/internal/api"
	"github.com/bz888/agentchat/internal/chat"
)

const (
	appTitle       = "AI Agent Chat"
	welcomeTitle   = "Welcome to AI Agent Chat!"
	welcomeText    = "Start a conversation by typing a message below."
	pendingText    = "Assistant is typing..."
	sendFailedText = "Failed to send message. Please try again."
	timeoutText    = "The agent took too long to answer. Please try again."
)

// renderConversation turns a snapshot into tview markup for the
// conversation view.
func renderConversation(st chat.State) string {
	if st.Empty() {
		return fmt.Sprintf("\n[::b]%s[::-]\n%s\n", welcomeTitle, welcomeText)
	}

	var b strings.Builder
	for _, m := range st.Messages {
		switch m.Role {
		case chat.RoleUser:
			b.WriteString("[red::b]You[-::-]")
		default:
			b.WriteString("[green::b]Assistant[-::-]")
		}
		fmt.Fprintf(&b, " [gray]%s[-]\n", m.CreatedAt.Format("15:04"))
		b.WriteString(tview.Escape(m.Content))
		b.WriteString("\n\n")
	}
	if st.Loading {
		fmt.Fprintf(&b, "[gray::i]%s[-::-]\n", pendingText)
	}
	return b.String()
}

// bannerText is the user facing line for a failed exchange, or "" when there
// is nothing to show.
func bannerText(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, api.ErrTimeout) {
		return timeoutText
	}
	return sendFailedText
}

func renderHeader(st chat.State, health string) string {
	parts := []string{fmt.Sprintf("[::b]%s[::-]", appTitle)}
	if health != "" {
		parts = append(parts, health)
	}
	if st.Model != "" {
		parts = append(parts, "model: "+tview.Escape(st.Model))
	}
	if st.SessionID != "" {
		parts = append(parts, "conversation: "+tview.Escape(shortID(st.SessionID)))
	}
	return strings.Join(parts, "  [gray]|[-]  ")
}

func renderHealth(resp *api.HealthResponse, err error) string {
	var terr *api.TransportError
	if errors.As(err, &terr) && terr.StatusCode != 0 {
		return fmt.Sprintf("[yellow]unhealthy (%d)[-]", terr.StatusCode)
	}
	if err != nil {
		return "[red]backend unreachable[-]"
	}
	if resp.Status == "healthy" {
		return "[green]" + tview.Escape(resp.Status) + "[-]"
	}
	return "[yellow]" + tview.Escape(resp.Status) + "[-]"
}

func shortID(id string) string {
	r := []rune(id)
	if len(r) <= 12 {
		return id
	}
	return string(r[:12]) + "…"
}
