// Package email hands a bug report to an outbound mail transport. The SMTP
// delivery itself is an external collaborator behind the Sender interface;
// the adapter's job is formatting the issue into a message.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

// Message is one outbound report mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a message. Tests substitute a stub.
type Sender interface {
	Send(ctx context.Context, addr string, auth smtp.Auth, msg Message) error
}

// Adapter is the email platform adapter.
type Adapter struct {
	sender Sender
}

// New creates an email adapter using the default SMTP sender.
func New() *Adapter {
	return &Adapter{sender: smtpSender{}}
}

// NewWithSender creates an email adapter with a custom sender (for testing).
func NewWithSender(s Sender) *Adapter {
	return &Adapter{sender: s}
}

// Name returns the platform identifier.
func (a *Adapter) Name() report.Platform { return report.PlatformEmail }

// Submit formats the issue as mail and hands it to the outbound transport.
// The credential carries host/username/password plus port, from and to extras
// loaded from SMTP_* environment variables.
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, opts report.SubmitOptions) (*adapters.Result, error) {
	to := cred.Extra["to"]
	from := cred.Extra["from"]
	if cred.Host == "" || to == "" || from == "" {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: "smtp host, from and to are required"}
	}

	port := cred.Extra["port"]
	if port == "" {
		port = "587"
	}

	var auth smtp.Auth
	if cred.Username != "" && cred.Token != "" {
		auth = smtp.PlainAuth("", cred.Username, cred.Token, cred.Host)
	}

	msg := Format(issue, opts, from, to)
	if err := a.sender.Send(ctx, cred.Host+":"+port, auth, msg); err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	return &adapters.Result{URL: "mailto:" + to}, nil
}

// Format renders the issue into a message. The repo and labels travel in the
// body so the receiving tracker has the full context.
func Format(issue report.Issue, opts report.SubmitOptions, from, to string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", issue.Repo)
	if labels := adapters.MergeLabels(issue.Labels, opts.Labels); len(labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(labels, ", "))
	}
	b.WriteString("\n")
	b.WriteString(issue.Body)
	b.WriteString("\n")

	return Message{
		From:    from,
		To:      to,
		Subject: "[bug] " + issue.Title,
		Body:    b.String(),
	}
}

// smtpSender is the default outbound transport. The whole exchange runs
// under a connection deadline so a silent or stalled server can never block
// the caller past the adapter timeout or the context deadline.
type smtpSender struct{}

func (smtpSender) Send(ctx context.Context, addr string, auth smtp.Auth, msg Message) error {
	dialer := net.Dialer{Timeout: adapters.DefaultTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(adapters.DefaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	data := "From: " + msg.From + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"\r\n" +
		msg.Body
	if _, err := w.Write([]byte(data)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
