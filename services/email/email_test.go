package emailsvc

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock()

	svc.SendMessages(
		&core.EmailMessage{
			To:      []mail.Address{{Name: "Ada Obi", Address: "ada@students.test"}},
			Subject: "Payment receipt",
			BodyStr: "Thank you.",
		},
		// dropped: nobody to deliver to
		&core.EmailMessage{Subject: "Orphan", BodyStr: "Nobody reads this."},
		// dropped: nothing to say
		&core.EmailMessage{To: []mail.Address{{Address: "bola@students.test"}}, Subject: "Empty"},
	)

	sent := SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Payment receipt", sent[0].Subject)
	assert.Equal(t, "Thank you.", sent[0].TextContent)

	ResetSentMessages()
	assert.Empty(t, SentMessages())
}

func TestConsoleService_compose(t *testing.T) {
	svc := NewConsoleService().(*consoleService)

	doc, err := svc.compose(core.EmailMessage{
		To:          []mail.Address{{Name: "Ọlá Adé", Address: "ola@students.test"}},
		Cc:          []mail.Address{{Address: "parent@home.test"}},
		Subject:     "Result for Ọlá",
		TextContent: "Your result is ready.",
		HTMLContent: "<p>Your result is ready.</p>",
	})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(doc))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, svc.subjPrefix+"Result for Ọlá", subject)
	assert.Equal(t, "parent@home.test", strings.Trim(msg.Header.Get("Cc"), "<>"))
	assert.Empty(t, msg.Header.Get("Bcc"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	r := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(nil).(*sendgridService)

	tests := []struct {
		name       string
		msg        core.EmailMessage
		wantCc     int
		wantBcc    int
		wantBodies []string
	}{
		{
			name: "text only",
			msg: core.EmailMessage{
				To:          []mail.Address{{Name: "Ada Obi", Address: "ada@students.test"}},
				Subject:     "Result sheet",
				TextContent: "Your result is ready.",
			},
			wantBodies: []string{"text/plain"},
		},
		{
			name: "html with copies",
			msg: core.EmailMessage{
				To:          []mail.Address{{Address: "ada@students.test"}},
				Cc:          []mail.Address{{Address: "parent@home.test"}},
				Bcc:         []mail.Address{{Address: "bursar@school.test"}, {Address: "audit@school.test"}},
				Subject:     "Payment receipt",
				TextContent: "Received.",
				HTMLContent: "<p>Received.</p>",
			},
			wantCc:     1,
			wantBcc:    2,
			wantBodies: []string{"text/plain", "text/html"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := svc.prepare(tt.msg)

			assert.Equal(t, svc.from, m.From)
			require.Len(t, m.Personalizations, 1)
			p := m.Personalizations[0]
			assert.Equal(t, svc.subjPrefix+tt.msg.Subject, p.Subject)
			require.Len(t, p.To, len(tt.msg.To))
			assert.Equal(t, tt.msg.To[0].Address, p.To[0].Address)
			assert.Len(t, p.CC, tt.wantCc)
			assert.Len(t, p.BCC, tt.wantBcc)

			types := make([]string, 0, len(m.Content))
			for _, c := range m.Content {
				types = append(types, c.Type)
			}
			assert.Equal(t, tt.wantBodies, types)
		})
	}
}

func TestSendgridService_prepare_tagsAndSandbox(t *testing.T) {
	svc := NewSendgridService(nil).(*sendgridService)
	svc.sandbox = true

	m := svc.prepare(core.EmailMessage{
		To:           []mail.Address{{Address: "ada@students.test"}},
		Subject:      "Payment receipt",
		TemplateName: "payment_receipt",
		TextContent:  "Received.",
	})
	assert.Equal(t, []string{"payment_receipt"}, m.Categories)
	require.NotNil(t, m.MailSettings)
	require.NotNil(t, m.MailSettings.SandboxMode)
	assert.True(t, *m.MailSettings.SandboxMode.Enable)

	svc.sandbox = false
	m = svc.prepare(core.EmailMessage{To: []mail.Address{{Address: "ada@students.test"}}, BodyStr: "Hi", TextContent: "Hi"})
	assert.Empty(t, m.Categories)
	assert.Nil(t, m.MailSettings)
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{})       {}
func (l *recordingLogger) Info(string, ...interface{})        {}
func (l *recordingLogger) Warn(string, ...interface{})        {}
func (l *recordingLogger) Fatal(string, ...interface{})       {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }

func TestSendgridService_send(t *testing.T) {
	backoff := retryBackoff
	retryBackoff = 0
	defer func() { retryBackoff = backoff }()

	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantErrs  int
	}{
		{name: "accepted", statuses: []int{http.StatusAccepted}, wantCalls: 1},
		{name: "throttled then accepted", statuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusAccepted}, wantCalls: 3},
		{name: "bad request is not retried", statuses: []int{http.StatusBadRequest}, wantCalls: 1, wantErrs: 1},
		{name: "gives up", statuses: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway, http.StatusAccepted}, wantCalls: maxAttempts, wantErrs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(recordingLogger)
			svc := NewSendgridService(logger).(*sendgridService)
			calls := 0
			svc.api = func(req rest.Request) (*rest.Response, error) {
				assert.Equal(t, rest.Post, req.Method)
				assert.Equal(t, host+endpoint, req.BaseURL)
				status := tt.statuses[calls]
				calls++
				return &rest.Response{StatusCode: status}, nil
			}

			svc.send(core.EmailMessage{To: []mail.Address{{Address: "ada@students.test"}}, Subject: "Receipt", TextContent: "Received."})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, logger.errors, tt.wantErrs)
		})
	}
}

func TestNew(t *testing.T) {
	backend, key := core.Conf.Mail.Backend, core.Conf.Mail.SendgridAPIKey
	defer func() { core.Conf.Mail.Backend, core.Conf.Mail.SendgridAPIKey = backend, key }()

	core.Conf.Mail.Backend, core.Conf.Mail.SendgridAPIKey = "sendgrid", ""
	assert.IsType(t, &consoleService{}, New(nil))

	core.Conf.Mail.SendgridAPIKey = "SG.key"
	assert.IsType(t, &sendgridService{}, New(nil))
}
