package emailsvc

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gladschool/portal/core"
)

// outbox keeps what the console services delivered so tests can read it back.
type outbox struct {
	mu   sync.Mutex
	msgs []core.EmailMessage
}

var sent = new(outbox)

func (o *outbox) add(msg core.EmailMessage) {
	o.mu.Lock()
	o.msgs = append(o.msgs, msg)
	o.mu.Unlock()
}

// SentMessages returns a copy of every message the console services delivered.
func SentMessages() []core.EmailMessage {
	sent.mu.Lock()
	defer sent.mu.Unlock()
	return append([]core.EmailMessage(nil), sent.msgs...)
}

func ResetSentMessages() {
	sent.mu.Lock()
	sent.msgs = nil
	sent.mu.Unlock()
}

// consoleService writes each message as a MIME document instead of delivering it.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	out        io.Writer
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() core.EmailService {
	return &consoleService{
		from:       core.Conf.DefaultFromEmail(),
		subjPrefix: "[" + core.Conf.AppName + "] ",
		out:        os.Stderr,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Printf("%+v", errors.Wrapf(err, "rendering %q email", msg.TemplateName))
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}
	doc, err := svc.compose(*msg)
	if err != nil {
		log.Printf("%+v", err)
		return
	}
	_, _ = io.WriteString(svc.out, doc)
	sent.add(*msg)
}

// compose renders `msg` as a multipart/alternative document.
func (svc consoleService) compose(msg core.EmailMessage) (string, error) {
	var head, parts bytes.Buffer
	altW := multipart.NewWriter(&parts)

	header := func(key, value string) { _, _ = fmt.Fprintf(&head, "%s: %s\r\n", key, value) }
	header("From", svc.from.String())
	header("To", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		header("Cc", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		header("Bcc", joinAddresses(msg.Bcc))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", svc.subjPrefix+msg.Subject))
	header("Date", core.NowFunc().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/alternative; boundary="+altW.Boundary())

	bodies := []struct{ ctype, content string }{{"text/plain", msg.TextContent}}
	if msg.HTMLContent != "" {
		bodies = append(bodies, struct{ ctype, content string }{"text/html", msg.HTMLContent})
	}
	for _, b := range bodies {
		w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {b.ctype + "; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrapf(err, "creating %s part", b.ctype)
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", b.content)
	}
	if err := altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart writer")
	}
	return head.String() + "\r\n" + parts.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

type consoleServiceMock struct {
	consoleService
}

// NewConsoleServiceMock delivers synchronously and silently; tests read SentMessages.
func NewConsoleServiceMock() core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:       core.Conf.DefaultFromEmail(),
			subjPrefix: "[" + core.Conf.AppName + "] ",
			out:        io.Discard,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}
