package slackapi

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// FetchError wraps a transport or API failure while reading a thread. The
// pipeline must abort for that message rather than invoke the AI with partial
// context.
type FetchError struct {
	Channel  string
	ThreadTS string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch thread %s/%s: %v", e.Channel, e.ThreadTS, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// conversationAPI is the slice of *slack.Client the bridge uses.
type conversationAPI interface {
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type Client struct {
	api conversationAPI
}

func NewClient(botToken string) *Client {
	return &Client{api: slack.New(botToken)}
}

// FetchThread returns the text of every message in the thread, in delivery
// order, skipping messages that carry no text.
func (c *Client) FetchThread(ctx context.Context, channel, threadTS string) ([]string, error) {
	var texts []string
	cursor := ""
	for {
		msgs, hasMore, next, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: threadTS,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, &FetchError{Channel: channel, ThreadTS: threadTS, Err: err}
		}
		for _, m := range msgs {
			if m.Text != "" {
				texts = append(texts, m.Text)
			}
		}
		if !hasMore {
			return texts, nil
		}
		cursor = next
	}
}

// PostReply posts text into the given thread.
func (c *Client) PostReply(ctx context.Context, channel, threadTS, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("post reply to %s/%s: %w", channel, threadTS, err)
	}
	return nil
}
