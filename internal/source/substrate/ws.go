package substrate

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// wsStream reads contract event frames from a node's websocket endpoint.
// The endpoint speaks JSON-RPC: the stream subscribes once and the node
// pushes one notification per system event, with the contract payload as
// 0x-prefixed hex.
type wsStream struct {
	conn *websocket.Conn
}

// DialWS opens a websocket stream and subscribes to contract events.
func DialWS(ctx context.Context, url string) (Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial substrate ws: %w", err)
	}

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "contracts_subscribeEvents",
		"params":  []any{},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe contract events: %w", err)
	}

	// The subscription reply carries the subscription id; consume it so
	// Next only ever sees event notifications.
	var ack struct {
		Result string          `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read subscribe ack: %w", err)
	}
	if len(ack.Error) != 0 {
		conn.Close()
		return nil, fmt.Errorf("subscribe rejected: %s", ack.Error)
	}
	return &wsStream{conn: conn}, nil
}

type wsFrame struct {
	Params struct {
		Result struct {
			Section     string `json:"section"`
			Method      string `json:"method"`
			Emitter     string `json:"emitter"`
			Data        string `json:"data"`
			BlockHash   string `json:"blockHash"`
			BlockNumber uint64 `json:"blockNumber"`
		} `json:"result"`
	} `json:"params"`
}

// Next blocks until the node pushes the next event notification.
func (s *wsStream) Next(ctx context.Context) (SystemEvent, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}

	var frame wsFrame
	if err := s.conn.ReadJSON(&frame); err != nil {
		return SystemEvent{}, fmt.Errorf("read frame: %w", err)
	}
	r := frame.Params.Result

	data, err := hex.DecodeString(strings.TrimPrefix(r.Data, "0x"))
	if err != nil {
		return SystemEvent{}, fmt.Errorf("decode payload hex: %w", err)
	}
	return SystemEvent{
		Section:     r.Section,
		Method:      r.Method,
		Emitter:     r.Emitter,
		Data:        data,
		BlockHash:   r.BlockHash,
		BlockNumber: r.BlockNumber,
	}, nil
}

// Close tears down the websocket. A blocked Next call returns with an error.
func (s *wsStream) Close() error {
	return s.conn.Close()
}
