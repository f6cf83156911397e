package main

import (
	"context"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/mila-iqia/ptera-sub000/util"
)

// wsLines forwards messages from a WebSocket connection, closing the
// channel when the connection drops.
func wsLines(ctx context.Context, urls string) (<-chan []byte, func(), error) {
	u, err := url.Parse(urls)
	if err != nil {
		return nil, nil, err
	}

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, nil, err
	}

	util.Logf("ptrace WebSocket client starting: %s", urls)

	lines := make(chan []byte, 10)
	go func() {
		defer close(lines)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				util.Logf("ptrace WebSocket client closing: %s", err)
				return
			}
			util.Logf("ptrace WebSocket client heard %s", message)
			select {
			case <-ctx.Done():
				return
			case lines <- message:
			}
		}
	}()

	return lines, func() { c.Close() }, nil
}
