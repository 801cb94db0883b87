package services

import (
	"context"
	"fmt"
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/gregdel/pushover"

	"github.com/decoyworks/honeypot/internal/config"
	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/util"
)

// EscalationEvent describes a freshly written block.
type EscalationEvent struct {
	Fingerprint string    `json:"fingerprint"`
	IP          string    `json:"ip"`
	Tier        string    `json:"tier"`
	Score       int       `json:"score"`
	Reason      string    `json:"reason"`
	BlockUntil  time.Time `json:"block_until"`
}

// Notifier delivers escalation events to operators.
type Notifier interface {
	Notify(ctx context.Context, ev EscalationEvent)
}

// ChannelNotifier fans escalation events out to shoutrrr URLs and Pushover.
type ChannelNotifier struct {
	urls []string

	pushoverApp       string
	pushoverRecipient string

	sendShoutrrr func(url, message string) error
	sendPushover func(app, recipient string, msg *pushover.Message) error
}

// NewChannelNotifier returns a notifier for the configured channels, or nil
// when none is configured.
func NewChannelNotifier(cfg config.NotifyConfig) *ChannelNotifier {
	n := &ChannelNotifier{
		urls:              cfg.URLs,
		pushoverApp:       cfg.PushoverApp,
		pushoverRecipient: cfg.PushoverRecipient,
		sendShoutrrr:      shoutrrr.Send,
		sendPushover:      deliverPushover,
	}
	if !n.Enabled() {
		return nil
	}
	return n
}

// Enabled reports whether any channel is configured.
func (n *ChannelNotifier) Enabled() bool {
	return len(n.urls) > 0 || (n.pushoverApp != "" && n.pushoverRecipient != "")
}

// Notify implements Notifier. Delivery failures are logged per channel.
func (n *ChannelNotifier) Notify(ctx context.Context, ev EscalationEvent) {
	log := logger.Component("notifier").WithField("fingerprint", ev.Fingerprint)
	title := fmt.Sprintf("Honeypot: %s tier block", ev.Tier)
	body := formatEscalation(ev)

	for _, url := range n.urls {
		if ctx.Err() != nil {
			return
		}
		if err := n.sendShoutrrr(url, title+"\n"+body); err != nil {
			log.WithError(err).Warn("shoutrrr notification failed")
		}
	}

	if n.pushoverApp != "" && n.pushoverRecipient != "" && ctx.Err() == nil {
		msg := &pushover.Message{
			Title:     title,
			Message:   body,
			Priority:  pushover.PriorityNormal,
			Timestamp: time.Now().Unix(),
			Sound:     pushover.SoundGamelan,
		}
		if err := n.sendPushover(n.pushoverApp, n.pushoverRecipient, msg); err != nil {
			log.WithError(err).Warn("pushover notification failed")
		}
	}
}

func formatEscalation(ev EscalationEvent) string {
	return fmt.Sprintf("IP: %s\nFingerprint: %s\nScore: %d\nReason: %s\nBlocked until: %s",
		util.SanitizeForLog(ev.IP),
		ev.Fingerprint,
		ev.Score,
		ev.Reason,
		ev.BlockUntil.UTC().Format(time.RFC3339),
	)
}

func deliverPushover(app, recipient string, msg *pushover.Message) error {
	_, err := pushover.New(app).SendMessage(msg, pushover.NewRecipient(recipient))
	return err
}
