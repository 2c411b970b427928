package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	apperrors "contactgate/pkg/errors"
)

// SMTPConfig holds the connection settings of an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure selects implicit TLS. Otherwise STARTTLS is used when offered.
	Secure bool
	// Timeout bounds connecting, the greeting and every later read/write.
	Timeout   time.Duration
	LocalName string
}

// SMTPTransport delivers through an authenticated SMTP relay, one
// connection per message.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport creates an SMTPTransport
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Info() TransportInfo {
	return TransportInfo{Name: "smtp", Host: t.cfg.Host, Port: t.cfg.Port, Secure: t.cfg.Secure}
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (t *SMTPTransport) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(t.cfg.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}

	if t.cfg.Secure {
		tlsConn := tls.Client(conn, t.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	var body bytes.Buffer
	if err := msg.WriteTo(&body); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to build message", err)
	}

	c, err := t.dial(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "could not connect to mail server", err)
	}
	defer c.Close()

	if err := c.Hello(t.cfg.LocalName); err != nil {
		return nil, classifySMTPError(err)
	}

	if !t.cfg.Secure {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(t.tlsConfig()); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "starttls failed", err)
			}
		}
	}

	if t.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return nil, apperrors.New(apperrors.ErrCodeAuthFailed, "mail server does not offer authentication")
		}
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeAuthFailed, "smtp authentication failed", err)
		}
	}

	if err := c.Mail(msg.FromEmail); err != nil {
		return nil, classifySMTPError(err)
	}

	receipt := &Receipt{}
	var lastErr error
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			receipt.Rejected = append(receipt.Rejected, rcpt)
			lastErr = err
			continue
		}
		receipt.Accepted = append(receipt.Accepted, rcpt)
	}
	if len(receipt.Accepted) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no recipients")
		}
		return receipt, classifySMTPError(lastErr)
	}

	w, err := c.Data()
	if err != nil {
		return receipt, classifySMTPError(err)
	}
	if _, err := io.Copy(w, &body); err != nil {
		return receipt, classifySMTPError(err)
	}
	if err := w.Close(); err != nil {
		return receipt, classifySMTPError(err)
	}
	receipt.Response = "250 accepted"

	// The message is already queued remotely. A failing QUIT is not an error.
	_ = c.Quit()
	return receipt, nil
}

// classifySMTPError maps reply codes and I/O failures to application errors.
func classifySMTPError(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 530 || tpErr.Code == 534 || tpErr.Code == 535:
			return apperrors.Wrap(apperrors.ErrCodeAuthFailed, "smtp credentials rejected", err)
		case tpErr.Code >= 550 && tpErr.Code <= 554:
			return apperrors.Wrap(apperrors.ErrCodeRecipientRejected, "message rejected by mail server", err)
		case tpErr.Code >= 400 && tpErr.Code < 500:
			return apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "mail server temporarily unavailable", err)
		default:
			return apperrors.Wrap(apperrors.ErrCodeInternalError, fmt.Sprintf("unexpected smtp reply %d", tpErr.Code), err)
		}
	}
	return apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "mail server connection failed", err)
}
