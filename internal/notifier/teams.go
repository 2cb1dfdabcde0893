package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// TeamsConfig holds Microsoft Teams webhook configuration.
type TeamsConfig struct {
	WebhookURL string // Teams incoming webhook URL
}

// Validate validates the Teams configuration.
func (c *TeamsConfig) Validate() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// TeamsNotifier posts alert cards to a Microsoft Teams channel webhook and
// mentions the recipients by their Teams (Entra ID) email address.
type TeamsNotifier struct {
	config     TeamsConfig
	httpClient *http.Client
}

// NewTeamsNotifier creates a new Teams notifier.
func NewTeamsNotifier(config TeamsConfig) (*TeamsNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid teams config: %w", err)
	}

	return &TeamsNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Channel returns the teams channel.
func (t *TeamsNotifier) Channel() models.Channel {
	return models.ChannelTeams
}

// Send posts one card that mentions every recipient.
func (t *TeamsNotifier) Send(ctx context.Context, msg *Message, to []string) error {
	payload := t.buildPayload(msg, to)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("teams API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for Teams notifier.
func (t *TeamsNotifier) Close() error {
	return nil
}

// teamsMessage represents the Teams webhook payload with Adaptive Card.
type teamsMessage struct {
	Type        string            `json:"type"`
	Attachments []teamsAttachment `json:"attachments"`
}

// teamsAttachment represents an attachment in the Teams message.
type teamsAttachment struct {
	ContentType string       `json:"contentType"`
	ContentURL  *string      `json:"contentUrl"`
	Content     adaptiveCard `json:"content"`
}

// adaptiveCard represents a Microsoft Adaptive Card.
type adaptiveCard struct {
	Schema  string        `json:"$schema"`
	Type    string        `json:"type"`
	Version string        `json:"version"`
	Body    []interface{} `json:"body"`
	MSTeams *msTeams      `json:"msteams,omitempty"`
}

// msTeams carries the Teams-specific card extensions.
type msTeams struct {
	Entities []mention `json:"entities"`
}

type mention struct {
	Type      string           `json:"type"`
	Text      string           `json:"text"`
	Mentioned mentionedAccount `json:"mentioned"`
}

type mentionedAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Adaptive Card element types
type textBlock struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Color  string `json:"color,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

type factSet struct {
	Type  string `json:"type"`
	Facts []fact `json:"facts"`
}

type fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type container struct {
	Type  string        `json:"type"`
	Style string        `json:"style,omitempty"`
	Items []interface{} `json:"items"`
}

// buildPayload builds the Teams Adaptive Card message payload.
func (t *TeamsNotifier) buildPayload(msg *Message, to []string) teamsMessage {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05 MST")
	emoji := statusEmoji(msg.Status)

	body := []interface{}{
		container{
			Type:  "Container",
			Style: teamsStatusStyle(msg.Status),
			Items: []interface{}{
				textBlock{
					Type:   "TextBlock",
					Text:   fmt.Sprintf("%s ReportWatch alert: %s", emoji, msg.AlertName),
					Size:   "Large",
					Weight: "Bolder",
					Wrap:   true,
				},
			},
		},
	}

	facts := []fact{
		{Title: "Status", Value: fmt.Sprintf("%s %s", emoji, strings.ToUpper(string(msg.Status)))},
		{Title: "Time", Value: timestamp},
	}
	if msg.ReportName != "" {
		facts = append(facts, fact{Title: "Report", Value: msg.ReportName})
	}
	if msg.KPI != "" {
		facts = append(facts, fact{Title: msg.KPI, Value: formatValue(msg.Value)})
	}
	if msg.Condition != "" {
		facts = append(facts, fact{Title: "Condition", Value: msg.Condition})
	}
	body = append(body, factSet{Type: "FactSet", Facts: facts})

	if msg.Text != "" {
		body = append(body, textBlock{
			Type: "TextBlock",
			Text: truncate(msg.Text, 500),
			Wrap: true,
		})
	}
	if msg.Description != "" {
		body = append(body, textBlock{
			Type:  "TextBlock",
			Text:  fmt.Sprintf("_%s_", msg.Description),
			Wrap:  true,
			Color: "light",
		})
	}

	var mentions []mention
	if len(to) > 0 {
		tags := make([]string, 0, len(to))
		for _, addr := range to {
			tag := fmt.Sprintf("<at>%s</at>", addr)
			tags = append(tags, tag)
			mentions = append(mentions, mention{
				Type:      "mention",
				Text:      tag,
				Mentioned: mentionedAccount{ID: addr, Name: addr},
			})
		}
		body = append(body, textBlock{
			Type: "TextBlock",
			Text: "Notify: " + strings.Join(tags, " "),
			Wrap: true,
		})
	}

	if msg.URL != "" {
		body = append(body, textBlock{
			Type: "TextBlock",
			Text: fmt.Sprintf("[Open alert](%s)", msg.URL),
			Wrap: true,
		})
	}

	card := adaptiveCard{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: "1.4",
		Body:    body,
	}
	if len(mentions) > 0 {
		card.MSTeams = &msTeams{Entities: mentions}
	}

	return teamsMessage{
		Type: "message",
		Attachments: []teamsAttachment{
			{
				ContentType: "application/vnd.microsoft.card.adaptive",
				ContentURL:  nil,
				Content:     card,
			},
		},
	}
}

// teamsStatusStyle returns an Adaptive Card container style for the alert status.
func teamsStatusStyle(status models.AlertStatus) string {
	switch status {
	case models.AlertStatusFailed:
		return "attention" // red
	case models.AlertStatusWarning:
		return "warning" // orange/yellow
	case models.AlertStatusSuccess:
		return "good" // green
	default:
		return "default"
	}
}
