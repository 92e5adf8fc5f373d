package core

import (
	"encoding/binary"
	"fmt"
	"sort"

	"gigchain/core/events"
	"gigchain/core/types"
)

const eventSequence = "events"

var eventPrefix = []byte("events/record/")

type storedEvent struct {
	Time   uint64
	Type   string
	Keys   []string
	Values []string
}

func eventKey(seq uint64) []byte {
	buf := make([]byte, len(eventPrefix)+8)
	copy(buf, eventPrefix)
	binary.BigEndian.PutUint64(buf[len(eventPrefix):], seq)
	return buf
}

func newStoredEvent(evt *types.Event, at int64) *storedEvent {
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = evt.Attributes[k]
	}
	if at < 0 {
		at = 0
	}
	return &storedEvent{Time: uint64(at), Type: evt.Type, Keys: keys, Values: values}
}

func (s *storedEvent) toRecord(seq uint64) (events.Record, error) {
	if len(s.Keys) != len(s.Values) {
		return events.Record{}, fmt.Errorf("core: event %d: corrupt attributes", seq)
	}
	attrs := make(map[string]string, len(s.Keys))
	for i, k := range s.Keys {
		attrs[k] = s.Values[i]
	}
	return events.Record{
		Seq:   seq,
		Time:  int64(s.Time),
		Event: &types.Event{Type: s.Type, Attributes: attrs},
	}, nil
}

// appendEvent stages evt in the persisted event log and returns its sequence.
func (n *Node) appendEvent(evt *types.Event) (uint64, error) {
	seq, err := n.state.NextSequence(eventSequence)
	if err != nil {
		return 0, err
	}
	if err := n.state.KVPut(eventKey(seq), newStoredEvent(evt, n.nowFn().Unix())); err != nil {
		return 0, err
	}
	return seq, nil
}

// LastEventSeq returns the sequence of the newest committed event.
func (n *Node) LastEventSeq() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Sequence(eventSequence)
}

// Events returns up to limit committed records starting at sequence from.
// Sequences start at 1.
func (n *Node) Events(from uint64, limit int) ([]events.Record, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	last, err := n.state.Sequence(eventSequence)
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	out := make([]events.Record, 0)
	for seq := from; seq <= last && len(out) < limit; seq++ {
		var stored storedEvent
		ok, err := n.state.KVGet(eventKey(seq), &stored)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("core: event %d missing", seq)
		}
		rec, err := stored.toRecord(seq)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
