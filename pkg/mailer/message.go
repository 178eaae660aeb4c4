package mailer

import (
	"fmt"
	"io"
	"math/rand"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"sync"
	"time"
)

// Message is a text + HTML email.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
	// Rand picks the MIME boundary. Nil uses a time-seeded source.
	Rand *rand.Rand
}

var (
	globalRandMu sync.Mutex
	globalRand   = rand.New(rand.NewSource(time.Now().UTC().UnixNano())) // #nosec G404
)

func (m *Message) boundary() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 28)
	if m.Rand != nil {
		for i := range b {
			b[i] = alphabet[m.Rand.Intn(len(alphabet))]
		}
		return string(b)
	}
	globalRandMu.Lock()
	defer globalRandMu.Unlock()
	for i := range b {
		b[i] = alphabet[globalRand.Intn(len(alphabet))]
	}
	return string(b)
}

// Write renders the message as multipart/alternative with quoted-printable
// parts.
func (m *Message) Write(w io.Writer) error {
	boundary := m.boundary()
	_, err := fmt.Fprintf(w,
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%s\r\n\r\n",
		m.From, strings.Join(m.To, ", "), mime.QEncoding.Encode("utf-8", m.Subject), boundary)
	if err != nil {
		return err
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	if m.Text != "" {
		if err := writePart(mw, "text/plain", m.Text); err != nil {
			return err
		}
	}
	if m.HTML != "" {
		if err := writePart(mw, "text/html", m.HTML); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	pw, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}
