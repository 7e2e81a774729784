package types

import (
	"github.com/DoyleJ11/labcards/internal/catalog"
	"github.com/DoyleJ11/labcards/internal/engine"
)

// Client -> Server
//   {"type":"draw"}
//   {"type":"reset"}
//   {"type":"redraw","suit":"TOOL"}
type ClientMessage struct {
	Type string `json:"type"`
	Suit string `json:"suit,omitempty"`
}

// Server -> Client
//   snapshot (join only), reset: version + snapshot
//   drawn, redrawn:              version + position + card
//   error (requester only):      code + error
type ServerMessage struct {
	Type     string    `json:"type"`
	Version  int       `json:"version,omitempty"`
	Position *int      `json:"position,omitempty"`
	Card     *Card     `json:"card,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Code     string    `json:"code,omitempty"`
	Error    string    `json:"error,omitempty"`
}

const (
	CodeExhausted        = "exhausted"
	CodeRedrawNotAllowed = "redraw_not_allowed"
	CodeBadRequest       = "bad_request"
	CodeUnavailable      = "unavailable"
)

type Card struct {
	Suit      string `json:"suit"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	ShortText string `json:"shortText"`
	URL       string `json:"url,omitempty"`
}

type Snapshot struct {
	Version    int             `json:"version"`
	Mode       string          `json:"mode"`
	Revealed   []Card          `json:"revealed"`
	Cursor     int             `json:"cursor"`
	Remaining  int             `json:"remaining"`
	Total      int             `json:"total"`
	Exhausted  bool            `json:"exhausted"`
	CanRedraw  map[string]bool `json:"canRedraw"`
	RedrawUsed map[string]bool `json:"redrawUsed"`
}

func FromCard(c catalog.Card) *Card {
	return &Card{
		Suit:      string(c.Suit),
		Name:      c.Name,
		Text:      c.Text,
		ShortText: c.ShortText,
		URL:       c.URL,
	}
}

func FromSnapshot(s engine.Snapshot) *Snapshot {
	out := &Snapshot{
		Version:    s.Version,
		Mode:       string(s.Mode),
		Revealed:   make([]Card, 0, len(s.Revealed)),
		Cursor:     s.Cursor,
		Remaining:  s.Remaining,
		Total:      s.Total,
		Exhausted:  s.Exhausted,
		CanRedraw:  make(map[string]bool, len(s.CanRedraw)),
		RedrawUsed: make(map[string]bool, len(s.RedrawUsed)),
	}
	for _, r := range s.Revealed {
		out.Revealed = append(out.Revealed, *FromCard(r.Card))
	}
	for suit, ok := range s.CanRedraw {
		out.CanRedraw[string(suit)] = ok
	}
	for suit, used := range s.RedrawUsed {
		out.RedrawUsed[string(suit)] = used
	}
	return out
}

func FromEvent(evt engine.Event) ServerMessage {
	msg := ServerMessage{Type: string(evt.Type), Version: evt.Version}
	switch evt.Type {
	case engine.EvtDrawn, engine.EvtRedrawn:
		pos := evt.Position
		msg.Position = &pos
		msg.Card = FromCard(evt.Card)
	case engine.EvtReset, engine.EvtSnapshot:
		if evt.Snapshot != nil {
			msg.Snapshot = FromSnapshot(*evt.Snapshot)
		}
	}
	return msg
}

func ErrorMessage(code, text string) ServerMessage {
	return ServerMessage{Type: "error", Code: code, Error: text}
}
