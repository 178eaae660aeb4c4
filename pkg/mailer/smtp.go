// Package mailer delivers email over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// TLS dials with implicit TLS; otherwise STARTTLS is used when offered.
	TLS   bool
	Hello string
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	var client *smtp.Client
	var err error
	if s.cfg.TLS {
		client, err = smtp.DialTLS(addr, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
	} else {
		client, err = smtp.DialStartTLS(addr, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			client, err = smtp.Dial(addr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to smtp server: %w", err)
	}

	if s.cfg.Hello != "" {
		if err := client.Hello(s.cfg.Hello); err != nil {
			client.Close()
			return nil, fmt.Errorf("could not greet upstream: %w", err)
		}
	}
	if s.cfg.User != "" || s.cfg.Password != "" {
		if err := client.Auth(sasl.NewLoginClient(s.cfg.User, s.cfg.Password)); err != nil {
			client.Close()
			return nil, fmt.Errorf("AUTH failed: %w", err)
		}
	}
	return client, nil
}

// Send delivers msg. The context only gates the start of delivery.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	// The envelope sender is the bare address of the From header.
	envelopeFrom := msg.From
	if addr, err := mail.ParseAddress(msg.From); err == nil {
		envelopeFrom = addr.Address
	}
	if err := client.Mail(envelopeFrom, nil); err != nil {
		return fmt.Errorf("smtp server rejected mail from '%s': %w", msg.From, err)
	}
	for _, address := range msg.To {
		if err := client.Rcpt(address, nil); err != nil {
			return fmt.Errorf("smtp server rejected mail to '%s': %w", address, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp server rejected request to send mail data: %w", err)
	}
	if err := msg.Write(writer); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp server rejected mail data: %w", err)
	}

	if err := client.Quit(); err != nil {
		smtpError := &smtp.SMTPError{}
		// Some servers answer QUIT with 250 instead of 221.
		if errors.As(err, &smtpError) && smtpError.Code == 250 {
			return nil
		}
		return err
	}
	return nil
}
