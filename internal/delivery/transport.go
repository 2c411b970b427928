package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Message is a fully addressed email handed to a Transport.
type Message struct {
	FromName  string
	FromEmail string
	To        []string
	ReplyTo   string
	Subject   string
	Text      string
	HTML      string
	MessageID string
	Date      time.Time
	Headers   map[string]string
}

// Receipt is what the remote side accepted.
type Receipt struct {
	Accepted []string
	Rejected []string
	Response string
}

// TransportInfo describes a transport for diagnostics.
type TransportInfo struct {
	Name   string `json:"name"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Secure bool   `json:"secure"`
}

// Transport moves a Message to the outside world. Implementations classify
// their failures as TRANSPORT_UNAVAILABLE, AUTHENTICATION_FAILED or
// RECIPIENT_REJECTED.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*Receipt, error)
	Info() TransportInfo
}

// LogTransport accepts every message and only logs it. Used when outbound
// email is disabled.
type LogTransport struct {
	log zerolog.Logger
}

// NewLogTransport creates a LogTransport
func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Send(_ context.Context, msg *Message) (*Receipt, error) {
	t.log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("message_id", msg.MessageID).
		Msg("email disabled, message not sent")
	return &Receipt{Accepted: append([]string(nil), msg.To...), Response: "250 logged"}, nil
}

func (t *LogTransport) Info() TransportInfo {
	return TransportInfo{Name: "log"}
}
