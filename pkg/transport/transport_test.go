package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colmet/pkg/config"
	"colmet/pkg/utils"
)

func TestPipe(t *testing.T) {
	p := NewPipe(4, "node1", "s-1")
	ctx := context.Background()

	payload := []byte("batch-1")
	require.NoError(t, p.Send(ctx, payload))
	payload[0] = 'X'
	require.NoError(t, p.Send(ctx, []byte("batch-2")))

	msgs, err := p.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("batch-1"), msgs[0].Payload, "payload is copied on send")
	assert.Equal(t, "node1", msgs[1].Hostname)
	assert.Equal(t, "s-1", msgs[1].Session)

	require.NoError(t, p.Commit(ctx, msgs))
	assert.Equal(t, 2, p.Committed())
}

func TestPipeReceiveWaits(t *testing.T) {
	p := NewPipe(1, "n", "s")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = p.Send(context.Background(), []byte("late"))
	}()
	msgs, err := p.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), msgs[0].Payload)
}

func TestPipeClose(t *testing.T) {
	p := NewPipe(2, "n", "s")
	ctx := context.Background()
	require.NoError(t, p.Send(ctx, []byte("last")))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Send(ctx, []byte("x")), ErrClosed)

	msgs, err := p.Receive(ctx)
	require.NoError(t, err, "queued messages survive close")
	assert.Len(t, msgs, 1)

	_, err = p.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPipeSendBlocksWhenFull(t *testing.T) {
	p := NewPipe(1, "n", "s")
	require.NoError(t, p.Send(context.Background(), []byte("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Send(ctx, []byte("b")), context.DeadlineExceeded)
}

func TestRecordHeaders(t *testing.T) {
	session := utils.NewSession("node7")
	rec := newRecord("colmet", session, []byte{1, 2, 3})
	assert.Equal(t, "colmet", rec.Topic)
	assert.Equal(t, []byte("node7"), rec.Key)

	m := fromRecord(rec)
	assert.Equal(t, []byte{1, 2, 3}, m.Payload)
	assert.Equal(t, "node7", m.Hostname)
	assert.Equal(t, session.ID.String(), m.Session)
	assert.Contains(t, session.String(), "node7/")
}

func TestClientOpts(t *testing.T) {
	cfg := config.NewNodeConfig().Kafka
	_, err := clientOpts(&cfg)
	assert.Error(t, err, "no brokers")

	cfg.Brokers = "b1:9092,b2:9092"
	opts, err := clientOpts(&cfg)
	require.NoError(t, err)
	plainOpts := len(opts)

	cfg.SASLUser, cfg.SASLPassword = "u", "p"
	opts, err = clientOpts(&cfg)
	require.NoError(t, err)
	assert.Len(t, opts, plainOpts+1)

	cfg.CAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = clientOpts(&cfg)
	assert.Error(t, err)

	cfg.CAFile = filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(cfg.CAFile, []byte("not a certificate"), 0o644))
	_, err = clientOpts(&cfg)
	assert.Error(t, err)
}
