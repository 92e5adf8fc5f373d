package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"gigchain/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBacklogPage  = 200
)

// handleEventsWS streams committed event records. The optional cursor query
// parameter is the last sequence the client has seen; everything after it is
// replayed from the event log before live records follow.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	conn, err := websocket.Accept(w, r, s.wsAcceptOptions())
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// wsAcceptOptions turns the configured CORS origins into websocket host
// patterns. Without configured origins any origin may connect.
func (s *Server) wsAcceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range s.cfg.AllowedOrigins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			continue
		}
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, host)
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	}
	return opts
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	sub := s.node.Subscribe()
	defer sub.Close()

	last := cursor
	for {
		backlog, err := s.node.Events(last+1, wsBacklogPage)
		if err != nil {
			return err
		}
		for _, rec := range backlog {
			if err := writeRecord(ctx, conn, rec); err != nil {
				return err
			}
			last = rec.Seq
		}
		if len(backlog) < wsBacklogPage {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-sub.C():
			if !ok {
				return nil
			}
			if rec.Seq <= last {
				continue
			}
			if rec.Seq > last+1 {
				// the subscription buffer overflowed; replay the gap
				gap, err := s.node.Events(last+1, int(rec.Seq-last-1))
				if err != nil {
					return err
				}
				for _, missed := range gap {
					if err := writeRecord(ctx, conn, missed); err != nil {
						return err
					}
				}
			}
			if err := writeRecord(ctx, conn, rec); err != nil {
				return err
			}
			last = rec.Seq
		}
	}
}

func writeRecord(ctx context.Context, conn *websocket.Conn, rec events.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
