package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"bookingflow/directory"
)

// Mailer delivers one templated e-mail.
type Mailer interface {
	Send(ctx context.Context, to, name, subject, template string, data map[string]any) error
}

// PushGateway delivers a push message. The response body is logged and never
// inspected for delivery status.
type PushGateway interface {
	Send(ctx context.Context, msg PushMessage) ([]byte, error)
}

// SmsGateway sends one text message and returns the gateway's delivery status.
type SmsGateway interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

// Filter is one audience clause. Clauses are joined by Operator entries.
type Filter struct {
	Field    string `json:"field,omitempty"`
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// PushMessage is the gateway-neutral push request.
type PushMessage struct {
	ID           string            `json:"id"`
	AppID        string            `json:"app_id"`
	Filters      []Filter          `json:"filters"`
	Data         any               `json:"data,omitempty"`
	Headings     map[string]string `json:"headings"`
	Contents     map[string]string `json:"contents"`
	AndroidSound string            `json:"android_sound,omitempty"`
	IOSSound     string            `json:"ios_sound,omitempty"`
	BadgeType    string            `json:"ios_badgeType,omitempty"`
	BadgeCount   int               `json:"ios_badgeCount,omitempty"`
	SendAfter    string            `json:"send_after,omitempty"`
}

// EmailAudience addresses each user by an exact e-mail tag match, OR-combined.
func EmailAudience(users []directory.User) []Filter {
	filters := make([]Filter, 0, 2*len(users))
	for i, u := range users {
		if i > 0 {
			filters = append(filters, Filter{Operator: "OR"})
		}
		filters = append(filters, Filter{
			Field:    "tag",
			Key:      "email",
			Relation: "=",
			Value:    strings.ToLower(u.Email),
		})
	}
	return filters
}

// Recipients counts the addressed clauses of an audience.
func Recipients(filters []Filter) int {
	n := 0
	for _, f := range filters {
		if f.Operator == "" {
			n++
		}
	}
	return n
}

// LogMailer records e-mails in the log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, name, subject, template string, _ map[string]any) error {
	m.logger.Info("mail queued",
		slog.String("to", to),
		slog.String("name", name),
		slog.String("subject", subject),
		slog.String("template", template),
	)
	return nil
}

// LogPush records push messages in the log instead of delivering them.
type LogPush struct {
	logger *slog.Logger
}

func NewLogPush(logger *slog.Logger) *LogPush {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPush{logger: logger}
}

func (p *LogPush) Send(_ context.Context, msg PushMessage) ([]byte, error) {
	p.logger.Info("push queued",
		slog.String("push_id", msg.ID),
		slog.Int("recipients", Recipients(msg.Filters)),
		slog.String("send_after", msg.SendAfter),
	)
	body, err := json.Marshal(map[string]any{"id": msg.ID, "recipients": Recipients(msg.Filters)})
	if err != nil {
		return nil, fmt.Errorf("notify: encode push response: %w", err)
	}
	return body, nil
}

// LogSMS records text messages in the log instead of delivering them.
type LogSMS struct {
	logger *slog.Logger
}

func NewLogSMS(logger *slog.Logger) *LogSMS {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSMS{logger: logger}
}

func (s *LogSMS) Send(_ context.Context, from, to, body string) (string, error) {
	s.logger.Info("sms queued", slog.String("from", from), slog.String("to", to), slog.Int("length", len(body)))
	return "queued", nil
}
