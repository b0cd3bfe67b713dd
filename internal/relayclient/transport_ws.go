package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
)

// wsTransport is the production transport implementation over
// nhooyr.io/websocket, grounded on internal/connection/websocket.go's
// reader/writer split. Writes are mutex-guarded: handleAPIRequest spawns a
// goroutine per in-flight injection, and nhooyr's Conn only supports one
// concurrent writer.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func dialWebSocket(ctx context.Context, url string) (transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(4 << 20)
	return &wsTransport{conn: conn}, nil
}

func (w *wsTransport) ReadFrame(ctx context.Context) (json.RawMessage, error) {
	msgType, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if msgType != websocket.MessageText {
		return nil, fmt.Errorf("unexpected relay message type: %d", msgType)
	}
	return json.RawMessage(data), nil
}

func (w *wsTransport) WriteFrame(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding relay frame: %w", err)
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.Write(context.Background(), websocket.MessageText, data)
}

func (w *wsTransport) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
