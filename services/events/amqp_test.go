package eventsvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
)

type fakeChannel struct {
	published []amqp091.Publishing
	keys      []string
	failOn    string
}

func (ch *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if key == ch.failOn {
		return errors.New("channel closed")
	}
	ch.keys = append(ch.keys, key)
	ch.published = append(ch.published, msg)
	return nil
}

func (ch *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_Publish(t *testing.T) {
	occurred := time.Date(2024, 9, 16, 8, 0, 0, 0, time.UTC)
	events := []core.Event{
		{Name: core.EventPaymentApplied, OccurredAt: occurred, ActorID: 3, Payload: map[string]int{"fee_id": 7}},
		{Name: core.EventResultSheetPublished, OccurredAt: occurred, ActorID: 1, Payload: map[string]int{"sheet_id": 2}},
	}

	tests := []struct {
		name      string
		failOn    string
		wantErr   bool
		wantCount int
	}{
		{name: "all delivered", wantCount: 2},
		{name: "stops at first failure", failOn: core.EventResultSheetPublished, wantErr: true, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{failOn: tt.failOn}
			p := &AMQPPublisher{ch: ch, exchange: "portal.events", appID: "portal"}

			err := p.Publish(context.Background(), events...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, ch.published, tt.wantCount)

			msg := ch.published[0]
			assert.Equal(t, core.EventPaymentApplied, ch.keys[0])
			assert.Equal(t, "application/json", msg.ContentType)
			assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
			assert.Equal(t, "portal", msg.AppId)

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(msg.Body, &decoded))
			assert.Equal(t, core.EventPaymentApplied, decoded["name"])
			assert.EqualValues(t, 3, decoded["actor_id"])
		})
	}
}

func TestNew_withoutBroker(t *testing.T) {
	conf := &core.Config{}
	pub, closeFn, err := New(conf)
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(context.Background(), core.NewEvent(core.EventFeeCreated, 1, nil)))
	assert.NoError(t, closeFn())
}
