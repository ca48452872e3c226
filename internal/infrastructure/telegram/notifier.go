package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"GroupWatch/internal/domain"
	"GroupWatch/internal/ports"
)

// Notifier delivers post batches to a Telegram chat via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message covering the whole batch. Any failure is returned
// so the dispatch gate leaves the posts marked un-notified.
func (n *Notifier) Send(ctx context.Context, posts []domain.Post, sourceURL string) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if len(posts) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", buildMessage(posts, sourceURL))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func buildMessage(posts []domain.Post, sourceURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new matching post(s)\n\n", len(posts))
	for _, post := range posts {
		fmt.Fprintf(&b, "• %s\n", post.Title)
		fmt.Fprintf(&b, "  %s | %s | %s\n", post.Category, post.Location, post.GroupName)
		if post.SourceURL != "" {
			fmt.Fprintf(&b, "  %s\n", post.SourceURL)
		}
		b.WriteString("\n")
	}
	if sourceURL != "" {
		fmt.Fprintf(&b, "Group: %s", sourceURL)
	}
	return b.String()
}
