package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"mcqgenerator/internal/models"
)

const botUsername = "MCQ Generator Notifier"

// Discord Embed Structures (based on documentation)
type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO8601 timestamp
	Color       int          `json:"color,omitempty"`     // Decimal color code
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// WebhookPayload is the structure Discord expects for webhook requests with embeds
type WebhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Discord posts embeds to a webhook. Sends run in the background and never block the caller.
type Discord struct {
	webhookURL string
	client     *http.Client
	wg         sync.WaitGroup
}

// NewDiscord returns nil when no webhook URL is configured.
func NewDiscord(webhookURL string) *Discord {
	if webhookURL == "" {
		log.Println("WARN: DISCORD_WEBHOOK_URL not set, failure notifications are disabled.")
		return nil
	}
	return &Discord{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GenerationFailed reports that the model returned the failure sentinel for a request.
func (d *Discord) GenerationFailed(sourceName string, kind models.Kind, sessionID string) {
	embed := Embed{
		Title:       fmt.Sprintf("🚨 Generation Failed: %s", kind.DisplayName()),
		Description: fmt.Sprintf("The model returned no content for `%s`.", sourceName),
		Color:       0xFF0000,
		Fields: []EmbedField{
			{Name: "Source", Value: sourceName, Inline: true},
			{Name: "Kind", Value: string(kind), Inline: true},
		},
	}
	if sessionID != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Session", Value: fmt.Sprintf("`%s`", sessionID)})
	}
	d.Send(embed)
}

// Send posts the embed asynchronously.
func (d *Discord) Send(embed Embed) {
	if d == nil {
		return
	}
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.post(embed); err != nil {
			log.Printf("ERROR: %v", err)
			return
		}
		log.Printf("INFO: Sent Discord embed notification: %s", embed.Title)
	}()
}

// Wait blocks until every pending send has finished.
func (d *Discord) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Discord) post(embed Embed) error {
	jsonPayload, err := json.Marshal(WebhookPayload{
		Username: botUsername,
		Embeds:   []Embed{embed},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal Discord embed payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.webhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create Discord embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord embed notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord embed notification failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}
