package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gladschool/portal/core"
)

func TestStdLogger(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		log   func(l core.Logger)
		want  string
	}{
		{
			name: "info",
			log:  func(l core.Logger) { l.Info("fee created") },
			want: "INFO: fee created\n",
		},
		{
			name: "error with args",
			log:  func(l core.Logger) { l.Error("sending receipt", errors.New("smtp down")) },
			want: "ERROR: sending receipt\nsmtp down\n",
		},
		{
			name: "debug muted",
			log:  func(l core.Logger) { l.Debug("compiling sheets") },
			want: "",
		},
		{
			name:  "debug enabled",
			debug: true,
			log:   func(l core.Logger) { l.Debug("compiling sheets", 3) },
			want:  "DEBUG: compiling sheets\n3\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			tt.log(NewStdLogger(log.New(buf, "", 0), tt.debug))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNew(t *testing.T) {
	std := log.New(new(bytes.Buffer), "", 0)

	assert.IsType(t, &StdLogger{}, New(std, &core.Config{}))
	assert.IsType(t, &RollbarLogger{}, New(std, &core.Config{RollbarToken: "token", TestMode: true}))
}
