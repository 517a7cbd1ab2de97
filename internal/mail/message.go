package mail

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const verificationSubject = "Verify your e-mail"

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

func verificationMessage(from string, to string, link string) Message {
	return Message{
		From:    from,
		To:      to,
		Subject: verificationSubject,
		HTML:    fmt.Sprintf(`Click <a href="%s">here</a> to verify your account.`, html.EscapeString(link)),
	}
}

// Bytes renders the message as an RFC 5322 payload for SMTP DATA.
func (m Message) Bytes() []byte {
	var b strings.Builder
	b.WriteString("From: " + m.From + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
