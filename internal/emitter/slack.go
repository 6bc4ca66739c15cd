package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/yairfalse/richeck/pkg/reservation"
)

// Attachment colors.
const (
	ColorWarning  = "warning"
	ColorGood     = "good"
	ColorExcluded = "#808080"
	ColorUnused   = "#439FE0"
)

// SlackConfig configures the Slack webhook emitter.
type SlackConfig struct {
	WebhookURL   string
	Channel      string // Overrides the webhook default channel when set
	Username     string
	ReportUnused bool         // Add an attachment for idle reservation capacity
	HTTPClient   *http.Client // Defaults to http.DefaultClient
	DryRun       io.Writer    // When set, the payload is written here instead of posted
}

// SlackEmitter formats reports as attachment messages and posts them to an
// incoming webhook.
type SlackEmitter struct {
	config SlackConfig
}

// NewSlackEmitter creates a Slack emitter.
func NewSlackEmitter(cfg SlackConfig) *SlackEmitter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &SlackEmitter{config: cfg}
}

// Emit formats and delivers the report.
func (e *SlackEmitter) Emit(ctx context.Context, report reservation.Report) error {
	return e.Deliver(ctx, e.FormatMessage(report))
}

// FormatMessage builds the webhook message for a report: one attachment per
// family, plus one for excluded resources and one for unused reservations
// where there are any.
func (e *SlackEmitter) FormatMessage(report reservation.Report) *slack.WebhookMessage {
	msg := &slack.WebhookMessage{
		Username: e.config.Username,
		Channel:  e.config.Channel,
	}

	for _, fr := range report.Families {
		msg.Attachments = append(msg.Attachments, e.FormatAttachment(fr.Family, fr.Unreserved, fr.DetailURL))
		if len(fr.Excluded) > 0 {
			msg.Attachments = append(msg.Attachments, e.FormatExcluded(fr.Family, fr.Excluded))
		}
		if e.config.ReportUnused && len(fr.Unused) > 0 {
			msg.Attachments = append(msg.Attachments, e.FormatUnused(fr.Family, fr.Unused))
		}
	}

	return msg
}

// FormatAttachment groups unreserved resources by GroupKey and lists their
// names. Title and color depend on the family and on whether any are left.
func (e *SlackEmitter) FormatAttachment(family reservation.Family, resources []reservation.RunningResource, detailURL string) slack.Attachment {
	if len(resources) == 0 {
		return slack.Attachment{
			Title:  fmt.Sprintf("All %s are reserved", family.Noun()),
			Color:  ColorGood,
			Fields: []slack.AttachmentField{},
		}
	}

	att := slack.Attachment{
		Title:  fmt.Sprintf("%s not in reserved instance list", family.Noun()),
		Color:  ColorWarning,
		Fields: groupFields(resources),
	}
	if detailURL != "" {
		att.Footer = fmt.Sprintf("<%s|Click to details>", detailURL)
	}
	return att
}

// FormatExcluded lists unreserved resources diverted by the exclude pattern.
func (e *SlackEmitter) FormatExcluded(family reservation.Family, resources []reservation.RunningResource) slack.Attachment {
	return slack.Attachment{
		Title:  fmt.Sprintf("Excluded %s not in reserved instance list", family.Noun()),
		Color:  ColorExcluded,
		Fields: groupFields(resources),
	}
}

// FormatUnused lists reservations with capacity left after matching.
func (e *SlackEmitter) FormatUnused(family reservation.Family, reservations []reservation.Reservation) slack.Attachment {
	var order []string
	units := make(map[string]int)
	for _, r := range reservations {
		key := reservationKey(r)
		if _, seen := units[key]; !seen {
			order = append(order, key)
		}
		units[key] += r.InstanceCount
	}

	fields := make([]slack.AttachmentField, 0, len(order))
	for _, key := range order {
		fields = append(fields, slack.AttachmentField{
			Title: key,
			Value: strconv.Itoa(units[key]),
			Short: true,
		})
	}

	return slack.Attachment{
		Title:  fmt.Sprintf("Unused %s reservations", family.Noun()),
		Color:  ColorUnused,
		Fields: fields,
	}
}

// Deliver posts the message to the webhook.
func (e *SlackEmitter) Deliver(ctx context.Context, msg *slack.WebhookMessage) error {
	if e.config.DryRun != nil {
		enc := json.NewEncoder(e.config.DryRun)
		enc.SetIndent("", "  ")
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		return nil
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, e.config.WebhookURL, e.config.HTTPClient, msg); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	log.Debug().Int("attachments", len(msg.Attachments)).Msg("slack message delivered")
	return nil
}

// Close is a no-op for the Slack emitter.
func (e *SlackEmitter) Close() error {
	return nil
}

// groupFields builds one short field per GroupKey, in first-seen order.
func groupFields(resources []reservation.RunningResource) []slack.AttachmentField {
	var order []string
	members := make(map[string][]string)
	for _, r := range resources {
		if _, seen := members[r.GroupKey]; !seen {
			order = append(order, r.GroupKey)
		}
		members[r.GroupKey] = append(members[r.GroupKey], r.DisplayName())
	}

	fields := make([]slack.AttachmentField, 0, len(order))
	for _, key := range order {
		fields = append(fields, slack.AttachmentField{
			Title: key,
			Value: strings.Join(members[key], ", "),
			Short: true,
		})
	}
	return fields
}

func reservationKey(r reservation.Reservation) string {
	switch {
	case r.CompareKey != "" && r.CompareKey != r.ResourceType:
		return fmt.Sprintf("%s (%s)", r.ResourceType, r.CompareKey)
	case r.AvailabilityZone != "":
		return fmt.Sprintf("%s @ %s", r.ResourceType, r.AvailabilityZone)
	default:
		return r.ResourceType
	}
}
