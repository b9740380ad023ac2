package web

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/recycleeye/pkg/app"
)

// Watch connects to a dashboard status stream (ws://host:port/ws/status) and
// calls fn for every state until ctx is done or the connection drops.
func Watch(ctx context.Context, url string, fn func(app.State)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("web: dial %s: %w", url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("web: read: %w", err)
		}

		var st app.State
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		fn(st)
	}
}
