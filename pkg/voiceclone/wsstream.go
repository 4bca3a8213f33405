package voiceclone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/YingxuanHu/pixelholo-frontend/pkg/streamio"
)

const wsStreamPath = "/stream/ws"

// Compile-time interface assertion.
var _ streamio.LineSource = (*wsLineSource)(nil)

// StreamWS starts a synthesis request over the WebSocket transport variant of
// the streaming endpoint. The request is sent as the first text message; each
// subsequent server message is one logical line in the same NDJSON dialect as
// the chunked HTTP stream, so the session layer consumes both transports
// through the [streamio.LineSource] interface.
//
// Cancelling ctx aborts the stream and surfaces context.Canceled from Next.
func (c *Client) StreamWS(ctx context.Context, req StreamRequest) (streamio.LineSource, error) {
	wsURL, err := wsEndpointURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("voiceclone: dial %s: %w", wsURL, err)
	}
	conn.SetReadLimit(8 << 20) // base64 WAV chunks can run to megabytes

	payload, err := json.Marshal(req)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "marshal request")
		return nil, fmt.Errorf("voiceclone: marshal stream request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		conn.Close(websocket.StatusInternalError, "send request")
		return nil, fmt.Errorf("voiceclone: send stream request: %w", err)
	}

	return &wsLineSource{ctx: ctx, conn: conn}, nil
}

// wsLineSource adapts a WebSocket connection to the line-oriented interface
// the session pump expects. One server message maps to one line.
type wsLineSource struct {
	ctx  context.Context
	conn *websocket.Conn
}

// Next returns the next server message as a trimmed line. A normal close
// maps to io.EOF; a context cancellation surfaces as the context error.
func (s *wsLineSource) Next() (string, error) {
	for {
		_, msg, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return "", s.ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return "", io.EOF
			}
			return "", fmt.Errorf("voiceclone: websocket read: %w", err)
		}
		line := strings.TrimSpace(string(msg))
		if line != "" {
			return line, nil
		}
	}
}

// Close closes the WebSocket with a normal-closure status.
func (s *wsLineSource) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "done")
}

// wsEndpointURL rewrites an http(s) base URL into the ws(s) URL of the
// streaming endpoint.
func wsEndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("voiceclone: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("voiceclone: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + wsStreamPath
	return u.String(), nil
}
