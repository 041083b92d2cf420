package events

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ err error }

func (f failingSink) Publish(context.Context, Message) error { return f.err }

func TestMessageFrame(t *testing.T) {
	frame, err := Message{Group: "1", Tag: TagMakersUpdate, Payload: []string{"a", "b"}}.Frame()
	require.NoError(t, err)
	assert.JSONEq(t, `{"MAKERS_UPDATE":["a","b"]}`, string(frame))
}

func TestGroups(t *testing.T) {
	assert.Equal(t, "10xabcd0xef01", PairGroup(1, "0xABCD", "0xEf01"))
	assert.Equal(t, "137", ChainGroup(137))
}

func TestMultiPublisherKeepsDeliveringOnFailure(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	boom := errors.New("boom")
	first, last := &Recorder{}, &Recorder{}
	publisher := NewMultiPublisher(logger, Sink{Name: "first", Publisher: first})
	publisher.Add("broken", failingSink{err: boom})
	publisher.Add("last", last)

	msg := Message{Group: "1", Tag: TagNewFees, Payload: "x"}
	err := publisher.Publish(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")

	assert.Equal(t, []Message{msg}, first.Messages())
	assert.Equal(t, []Message{msg}, last.Messages())
	assert.Empty(t, last.ByTag(TagDelMaker))
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), Message{}))
}
