package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender(t *testing.T) {
	s := NewLogSender(nil)
	require.NoError(t, s.Send(context.Background(), Message{ToEmail: "a@example.com", Subject: "hi"}))
	require.NoError(t, s.Send(context.Background(), Message{ToEmail: "b@example.com", Subject: "hi"}))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "b@example.com", sent[1].ToEmail)
}

func TestExtrasGranted(t *testing.T) {
	msg := ExtrasGranted("Acme", "hr@acme.test", map[string]int64{
		"numberOfViews": 50,
		"numberOfJobs":  2,
	})
	assert.Equal(t, "hr@acme.test", msg.ToEmail)
	assert.Contains(t, msg.Text, "numberOfJobs: +2\n  numberOfViews: +50")
	assert.Contains(t, msg.HTML, "<li>numberOfViews: +50</li>")
}
