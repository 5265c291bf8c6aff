package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"mixerpanel/internal/panel"
)

// Client is a remote session seen from the other end.
type Client struct {
	conn *websocket.Conn
}

// Dial opens a session at url (ws://host:port/path).
// A busy endpoint is reported as ErrBusy, a stopping one as ErrShuttingDown.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusConflict:
				return nil, errors.Wrapf(ErrBusy, "dial %s", url)
			case http.StatusServiceUnavailable:
				return nil, errors.Wrapf(ErrShuttingDown, "dial %s", url)
			}
		}
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &Client{conn: conn}, nil
}

// Do sends one action and waits for its response.
func (c *Client) Do(ctx context.Context, a panel.Action) error {
	data, err := panel.MarshalAction(a)
	if err != nil {
		return errors.Wrap(err, "marshal action")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "send action")
	}

	_ = c.conn.SetReadDeadline(deadline)
	var resp Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.Status != StatusOK {
		return errors.Errorf("remote error: %s", resp.Error)
	}
	return nil
}

// Close says goodbye and drops the connection.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
