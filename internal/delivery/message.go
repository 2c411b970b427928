package delivery

import (
	"fmt"
	"io"
	"sort"

	gomail "github.com/emersion/go-message/mail"
)

// WriteTo renders msg as a multipart/alternative MIME message.
func (m *Message) WriteTo(w io.Writer) error {
	var h gomail.Header
	h.SetDate(m.Date)
	h.SetAddressList("From", []*gomail.Address{{Name: m.FromName, Address: m.FromEmail}})

	to := make([]*gomail.Address, 0, len(m.To))
	for _, addr := range m.To {
		to = append(to, &gomail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	if m.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*gomail.Address{{Address: m.ReplyTo}})
	}
	h.SetSubject(m.Subject)
	if m.MessageID != "" {
		h.Set("Message-Id", "<"+m.MessageID+">")
	}

	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, m.Headers[k])
	}

	iw, err := gomail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("create mime writer: %w", err)
	}
	if err := writePart(iw, "text/plain", m.Text); err != nil {
		return err
	}
	if m.HTML != "" {
		if err := writePart(iw, "text/html", m.HTML); err != nil {
			return err
		}
	}
	return iw.Close()
}

func writePart(iw *gomail.InlineWriter, contentType, body string) error {
	var ph gomail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return err
	}
	return pw.Close()
}
