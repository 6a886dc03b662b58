// Slack Web API client for alert and incident notifications.
//
// Environment:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack channel ID (C...)
//   - FRONTEND_URL: base URL for item links
//
// A bot token is used instead of an incoming webhook so that chat.postMessage
// returns the message ts: later alerts for the same item are posted as
// replies in that item's thread.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/model"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

type SlackClient struct {
	botToken    string
	channelID   string
	frontendURL string
	apiURL      string
	httpClient  *http.Client

	// threadMap: item id -> thread_ts of the first message posted for it
	threadMap sync.Map
}

type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

func NewSlackClient(cfg config.SlackConfig) *SlackClient {
	return &SlackClient{
		botToken:    cfg.BotToken,
		channelID:   cfg.ChannelID,
		frontendURL: cfg.FrontendURL,
		apiURL:      slackPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

func (c *SlackClient) Name() string { return "slack" }

// Send posts the notification to the configured channel, threading it under
// earlier messages for the same item.
func (c *SlackClient) Send(ctx context.Context, n model.Notification) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	msg := c.formatNotification(n)
	if ts, ok := c.GetThreadTS(n.Item.ID); ok {
		msg.ThreadTS = ts
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		return err
	}
	if msg.ThreadTS == "" && resp.TS != "" {
		c.StoreThreadTS(n.Item.ID, resp.TS)
	}
	return nil
}

func (c *SlackClient) formatNotification(n model.Notification) SlackMessage {
	fields := []SlackField{
		{Title: "Item", Value: fmt.Sprintf("%s - %s", n.Item.Code, n.Item.Name), Short: true},
		{Title: "Type", Value: string(n.Item.Type), Short: true},
	}

	att := SlackAttachment{
		Footer: "slatrack",
		Ts:     n.CreatedAt.Unix(),
	}
	switch {
	case n.Alert != nil:
		att.Color = colorByUrgency(n.Alert.Urgency)
		att.Title = fmt.Sprintf("%s [%s] %s", emojiByUrgency(n.Alert.Urgency), n.Alert.Urgency, n.Alert.Type)
		att.Text = n.Alert.Message
		if n.Alert.PendingIncidents > 0 {
			fields = append(fields, SlackField{Title: "Pending incidents", Value: fmt.Sprintf("%d", n.Alert.PendingIncidents), Short: true})
		}
	case n.Incident != nil:
		att.Color = colorByUrgency(model.Urgency(n.Incident.Severity))
		att.Title = fmt.Sprintf("Incident #%d: %s", n.Incident.ID, n.Incident.Title)
		att.Text = n.Incident.Description
		fields = append(fields, SlackField{Title: "Severity", Value: n.Incident.Severity, Short: true})
	}

	if c.frontendURL != "" {
		link := fmt.Sprintf("<%s/items/%d|Open item>", c.frontendURL, n.Item.ID)
		fields = append(fields, SlackField{Title: "Dashboard", Value: link, Short: false})
	}
	att.Fields = fields

	return SlackMessage{
		Channel:     c.channelID,
		Attachments: []SlackAttachment{att},
	}
}

// send calls chat.postMessage.
func (c *SlackClient) send(ctx context.Context, msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return &slackResp, nil
}

func (c *SlackClient) StoreThreadTS(itemID int64, threadTS string) {
	c.threadMap.Store(itemID, threadTS)
}

func (c *SlackClient) GetThreadTS(itemID int64) (string, bool) {
	val, ok := c.threadMap.Load(itemID)
	if !ok {
		return "", false
	}
	return val.(string), true
}

func colorByUrgency(u model.Urgency) string {
	switch u {
	case model.UrgencyCritical:
		return "#dc3545" // red
	case model.UrgencyHigh:
		return "#fd7e14" // orange
	case model.UrgencyMedium:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}

func emojiByUrgency(u model.Urgency) string {
	if u == model.UrgencyCritical || u == model.UrgencyHigh {
		return "🔥"
	}
	return "⚠️"
}
