// Package gmail implements the optional schedule-ready notifier, adapted
// from the teacher's pkg/clients/gmailclient: an OAuth2-authenticated
// Gmail API client that sends a plain-text email per finished run,
// throttled to respect Gmail's send-rate limits.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/ilford-drop-in/internal/config"
	"github.com/jakechorley/ilford-drop-in/pkg/utils"
)

// sendInterval throttles outgoing mail to stay well under Gmail's
// per-account send-rate limits.
const sendInterval = 3 * time.Second

// Client wraps the Gmail API client used to notify recipients when a day
// schedule has finished generating.
type Client struct {
	service      *gmail.Service
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// New creates a Gmail client using an existing OAuth token. The token must
// already carry the gmail.send scope.
func New(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{service: service}, nil
}

// SendEmail sends a plain-text email with the given subject and body,
// throttling requests to respect Gmail's rate limits.
func (c *Client) SendEmail(to, subject, body string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if elapsed := time.Since(c.lastSendTime); elapsed < sendInterval {
			time.Sleep(sendInterval - elapsed)
		}
	}

	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body)
	encodedMessage := base64.URLEncoding.EncodeToString([]byte(message))

	gmailMessage := &gmail.Message{Raw: encodedMessage}

	if _, err := c.service.Users.Messages.Send("me", gmailMessage).Do(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.lastSendTime = time.Now()
	return nil
}

// NotifyScheduleReady sends a summary of a finished run to every configured
// recipient. Violations and generation count are included so the
// recipient can judge the run's quality without opening the editor.
func NotifyScheduleReady(client *Client, cfg config.NotifyConfig, date time.Time, entryCount, violationCount, generations int, bestFitness float64) error {
	if !cfg.Enabled || client == nil || len(cfg.Recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Schedule ready for %s", date.Format("2006-01-02"))
	body := fmt.Sprintf(
		"Generated %d entries in %d generations.\nBest fitness: %.1f\nViolations: %d\n",
		entryCount, generations, bestFitness, violationCount,
	)

	var errs []string
	for _, to := range cfg.Recipients {
		if err := client.SendEmail(to, subject, body); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", to, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to notify %d of %d recipients: %s", len(errs), len(cfg.Recipients), strings.Join(errs, "; "))
	}
	return nil
}
