package events

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Envelope is the outer shape of a webhook body. Slack sends either a URL
// verification challenge or an event callback; everything else is ignored.
type Envelope struct {
	Challenge string `json:"challenge,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

type Event struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) IsChallenge() bool {
	return e.Challenge != ""
}

// FromSelf reports whether the event originated from the bridge's own actor:
// any bot-authored message, or a message whose sender is our bot user. Both
// must be filtered or the bot answers its own replies forever.
func (ev *Event) FromSelf(botUserID string) bool {
	if ev.BotID != "" {
		return true
	}
	return botUserID != "" && ev.User == botUserID
}

func (ev *Event) HasText() bool {
	return ev.Text != ""
}

// ThreadKey is the timestamp the reply thread hangs off: thread_ts when the
// message is already in a thread, the message's own ts otherwise.
func (ev *Event) ThreadKey() string {
	if ev.ThreadTS != "" {
		return ev.ThreadTS
	}
	return ev.TS
}

var mentionRe = regexp.MustCompile(`<@[\w]+>`)

// StripMentions removes <@USERID> tokens and trims surrounding whitespace.
func StripMentions(text string) string {
	return strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
}

// BuildPrompt flattens a fetched thread into a single prompt string.
func BuildPrompt(texts []string) string {
	return StripMentions(strings.Join(texts, "\n"))
}
