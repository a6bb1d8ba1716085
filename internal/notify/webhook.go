package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/collector"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/db"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C - run aborted
	colorGreen  = 5763719  // 0x57F287 - clean run
	colorYellow = 16705372 // 0xFEE75C - finished with skipped ids or rows

	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// NewCollectPayload summarizes a collect run
func NewCollectPayload(runID string, r collector.Range, s collector.Summary, csvPath string, elapsed time.Duration, runErr error) WebhookPayload {
	embed := Embed{
		Title: "Pokemon collected",
		Color: colorGreen,
		Fields: []EmbedField{
			{Name: "Range", Value: fmt.Sprintf("%d-%d", r.Start, r.End), Inline: true},
			{Name: "Collected", Value: fmt.Sprintf("%s/%s", formatNumber(s.Collected), formatNumber(s.Requested)), Inline: true},
			{Name: "Runtime", Value: formatDuration(elapsed), Inline: true},
			{Name: "Fetch Failures", Value: formatNumber(s.FetchFailed), Inline: true},
			{Name: "Malformed", Value: formatNumber(s.Malformed), Inline: true},
			{Name: "Duplicates", Value: formatNumber(s.Duplicates), Inline: true},
		},
		Footer:    &EmbedFooter{Text: "run " + runID},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if csvPath != "" {
		embed.Description = "Saved to `" + csvPath + "`"
	}

	switch {
	case runErr != nil:
		embed.Title = "Pokemon collection failed"
		embed.Color = colorRed
		embed.Description = runErr.Error()
	case s.FetchFailed+s.Malformed+s.Duplicates > 0:
		embed.Color = colorYellow
	}

	return WebhookPayload{Embeds: []Embed{embed}}
}

// NewLoadPayload summarizes a load run
func NewLoadPayload(runID string, rep db.Report, csvPath string, elapsed time.Duration, runErr error) WebhookPayload {
	embed := Embed{
		Title:       "Pokemon loaded into " + db.DatabaseName,
		Description: "From `" + csvPath + "`",
		Color:       colorGreen,
		Fields: []EmbedField{
			{Name: "Inserted", Value: formatNumber(rep.Inserted), Inline: true},
			{Name: "Skipped", Value: formatNumber(rep.Skipped), Inline: true},
			{Name: "Failed", Value: formatNumber(rep.Failed), Inline: true},
			{Name: "Stage", Value: rep.Stage.String(), Inline: true},
			{Name: "Committed", Value: strconv.FormatBool(rep.Committed), Inline: true},
			{Name: "Runtime", Value: formatDuration(elapsed), Inline: true},
		},
		Footer:    &EmbedFooter{Text: "run " + runID},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	switch {
	case runErr != nil:
		embed.Title = "Pokemon load failed"
		embed.Color = colorRed
		embed.Description = runErr.Error()
	case !rep.Committed:
		embed.Title = "Pokemon load not committed"
		embed.Color = colorRed
	case rep.Failed > 0:
		embed.Color = colorYellow
	}

	return WebhookPayload{Embeds: []Embed{embed}}
}

// WebhookClient sends run summaries to a Discord webhook
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// Send posts a payload, retrying when Discord rate limits the request
func (c *WebhookClient) Send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Second
			if seconds, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil {
				wait = time.Duration(seconds * float64(time.Second))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xm Ys", or "Xh Ym" for long runs
func formatDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
