package redis

import (
	"testing"

	"github.com/aisgo/vlog-gateway/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClientWithServer(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	client := Wrap(redis.NewClient(&redis.Options{Addr: server.Addr()}), logger.NewNop())
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, server
}

func newTestClient(t *testing.T) *Client {
	client, _ := newTestClientWithServer(t)
	return client
}
