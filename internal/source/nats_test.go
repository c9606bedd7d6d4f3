package source

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/vocap/internal/utterance"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNATS_ReceivesPayloads(t *testing.T) {
	srv := startTestNATSServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan utterance.Raw, 8)
	src := &NATS{URL: srv.ClientURL(), Subject: "vocap.test"}
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	pub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer pub.Close()

	// The subscription is created asynchronously; publish until it is seen.
	msg := nats.NewMsg("vocap.test")
	msg.Header.Set(nats.MsgIdHdr, "msg-1")
	msg.Data = []byte(`{"text": "take a note from nats"}`)

	var got utterance.Raw
	require.Eventually(t, func() bool {
		_ = pub.PublishMsg(msg)
		select {
		case got = <-out:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, "take a note from nats", got.Text)
	assert.Equal(t, "msg-1", got.SourceID)
	assert.False(t, got.ObservedAt.IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nats source did not stop")
	}
}

func TestNATS_SharedConnection(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan utterance.Raw, 8)
	src := &NATS{Conn: nc, Subject: "vocap.shared"}
	go func() { _ = src.Run(ctx, out) }()

	require.Eventually(t, func() bool {
		_ = nc.Publish("vocap.shared", []byte("line one\nline two"))
		select {
		case r := <-out:
			return r.Text == "line one"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	assert.False(t, nc.IsClosed(), "a shared connection is not closed by the source")
}

func TestNATS_ConnectFailure(t *testing.T) {
	src := &NATS{URL: "nats://127.0.0.1:1", Subject: "x"}
	err := src.Run(context.Background(), make(chan utterance.Raw))
	assert.Error(t, err)
}
