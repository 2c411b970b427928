// Package delivery is the single outbound email path: content check,
// per-source limit, global send spacing, standard headers and counters.
package delivery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"contactgate/internal/antispam"
	"contactgate/internal/ratelimit"
	apperrors "contactgate/pkg/errors"
)

const (
	DefaultMinInterval = time.Second
	xMailer            = "contactgate"
)

// PerSource limits how many emails one visitor IP can trigger.
var PerSource = ratelimit.Tier{Name: "delivery", Window: 15 * time.Minute, Max: 5}

// Config is the sender identity stamped on every message.
type Config struct {
	SenderName       string
	SenderEmail      string
	ReplyTo          string
	UnsubscribeEmail string
	Application      string
}

// Email is the content of one outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Options tune a single Send call.
type Options struct {
	ReplyTo        string
	ReferenceID    string
	SourceIP       string
	SkipSpamCheck  bool
	UnsubscribeURL string
}

// Result reports an accepted message.
type Result struct {
	MessageID string   `json:"messageId"`
	Accepted  []string `json:"accepted"`
	Rejected  []string `json:"rejected"`
	Response  string   `json:"response,omitempty"`
}

// Statistics is a snapshot of the service counters.
type Statistics struct {
	TotalSent  int64         `json:"totalEmailsSent"`
	LastSentAt *time.Time    `json:"lastEmailTime"`
	Transport  TransportInfo `json:"transport"`
	Sender     string        `json:"sender"`
}

// Service wraps a Transport. Create one per process and share it.
type Service struct {
	cfg       Config
	transport Transport
	scorer    *antispam.Scorer
	limiter   *ratelimit.Limiter
	spacing   *rate.Limiter
	log       zerolog.Logger
	now       func() time.Time

	sent     atomic.Int64
	lastSent atomic.Int64 // unix nanoseconds, 0 before the first send
}

// Option configures a Service
type Option func(*Service)

// WithMinInterval sets the minimum spacing between two sends. Zero disables it.
func WithMinInterval(d time.Duration) Option {
	return func(s *Service) {
		if d <= 0 {
			s.spacing = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.spacing = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates the delivery service. limiter backs the per-source limit.
func NewService(cfg Config, transport Transport, limiter *ratelimit.Limiter, opts ...Option) *Service {
	if cfg.Application == "" {
		cfg.Application = "contact-form"
	}
	if cfg.ReplyTo == "" {
		cfg.ReplyTo = cfg.SenderEmail
	}
	if cfg.UnsubscribeEmail == "" {
		cfg.UnsubscribeEmail = cfg.SenderEmail
	}
	s := &Service{
		cfg:       cfg,
		transport: transport,
		scorer:    antispam.DeliveryScorer(),
		limiter:   limiter,
		spacing:   rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send checks, spaces and delivers one email.
func (s *Service) Send(ctx context.Context, email Email, opts Options) (*Result, error) {
	if !opts.SkipSpamCheck {
		body := email.Text
		if body == "" {
			body = email.HTML
		}
		if res, ok := s.scorer.Check(body); !ok {
			s.log.Warn().
				Int("score", res.Score).
				Strs("reasons", res.Reasons).
				Str("source_ip", opts.SourceIP).
				Msg("outbound content rejected")
			err := apperrors.New(apperrors.ErrCodeContentRejected, "content rejected by delivery check")
			err.Details = res.Reasons
			return nil, err
		}
	}

	if opts.SourceIP != "" && s.limiter != nil {
		d, err := s.limiter.Allow(ctx, PerSource, opts.SourceIP)
		if err != nil {
			s.log.Error().Err(err).Msg("delivery limiter unavailable, continuing")
		} else if !d.Allowed {
			return nil, apperrors.RateLimited("delivery limit reached for source", d.RetryAfter)
		}
	}

	if err := s.spacing.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "send cancelled while waiting for slot", err)
	}

	msg := s.buildMessage(email, opts)
	receipt, err := s.transport.Send(ctx, msg)
	if err != nil {
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "transport failed", err)
		}
		s.log.Error().
			Err(err).
			Str("to", email.To).
			Str("reference_id", msg.Headers["X-Entity-Ref-ID"]).
			Msg("email send failed")
		return nil, err
	}

	total := s.sent.Add(1)
	s.lastSent.Store(s.now().UnixNano())

	s.log.Info().
		Str("message_id", msg.MessageID).
		Str("to", email.To).
		Int64("count", total).
		Msg("email sent")

	return &Result{
		MessageID: msg.MessageID,
		Accepted:  receipt.Accepted,
		Rejected:  receipt.Rejected,
		Response:  receipt.Response,
	}, nil
}

func (s *Service) buildMessage(email Email, opts Options) *Message {
	id := uuid.NewString()

	replyTo := opts.ReplyTo
	if replyTo == "" {
		replyTo = s.cfg.ReplyTo
	}
	ref := opts.ReferenceID
	if ref == "" {
		ref = id
	}
	unsubscribe := "<mailto:" + s.cfg.UnsubscribeEmail + "?subject=unsubscribe>"
	if opts.UnsubscribeURL != "" {
		unsubscribe = "<" + opts.UnsubscribeURL + ">"
	}

	return &Message{
		FromName:  s.cfg.SenderName,
		FromEmail: s.cfg.SenderEmail,
		To:        []string{email.To},
		ReplyTo:   replyTo,
		Subject:   email.Subject,
		Text:      email.Text,
		HTML:      email.HTML,
		MessageID: id + "@" + senderDomain(s.cfg.SenderEmail),
		Date:      s.now(),
		Headers: map[string]string{
			"X-Priority":       "3",
			"X-Mailer":         xMailer,
			"X-Application":    s.cfg.Application,
			"X-Entity-Ref-ID":  ref,
			"X-Email-Count":    strconv.FormatInt(s.sent.Load()+1, 10),
			"List-Unsubscribe": unsubscribe,
		},
	}
}

// Statistics returns the current counters.
func (s *Service) Statistics() Statistics {
	st := Statistics{
		TotalSent: s.sent.Load(),
		Transport: s.transport.Info(),
		Sender:    s.cfg.SenderEmail,
	}
	if ns := s.lastSent.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastSentAt = &t
	}
	return st
}

// TestReport is the outcome of TestConfiguration.
type TestReport struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Error      string     `json:"error,omitempty"`
	Result     *Result    `json:"result,omitempty"`
	Statistics Statistics `json:"statistics"`
}

// TestConfiguration sends a diagnostic email to to and reports the outcome
// together with the current statistics. It never returns an error.
func (s *Service) TestConfiguration(ctx context.Context, to string) TestReport {
	info := s.transport.Info()
	text := fmt.Sprintf("Teste de configuração de email\n\nEste é um email de teste.\n\nConfiguração:\n- Transporte: %s\n- Host: %s\n- Porta: %d\n- Remetente: %s\n- Segurança: %s\n",
		info.Name, info.Host, info.Port, s.cfg.SenderEmail, securityLabel(info.Secure))

	res, err := s.Send(ctx, Email{
		To:      to,
		Subject: "Teste de Configuração de Email - " + s.cfg.SenderName,
		Text:    text,
		HTML:    "<pre>" + text + "</pre>",
	}, Options{
		ReferenceID:   fmt.Sprintf("test-%d", s.now().UnixMilli()),
		SkipSpamCheck: true,
	})
	if err != nil {
		return TestReport{
			Success:    false,
			Message:    "Falha ao enviar email de teste",
			Error:      string(apperrors.CodeOf(err)),
			Statistics: s.Statistics(),
		}
	}
	return TestReport{
		Success:    true,
		Message:    "Email de teste enviado com sucesso",
		Result:     res,
		Statistics: s.Statistics(),
	}
}

func securityLabel(secure bool) string {
	if secure {
		return "SSL/TLS"
	}
	return "STARTTLS"
}

func senderDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
