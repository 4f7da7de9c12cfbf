package chat

import (
	"slices"
	"sort"
)

const (
	MaxMessages   = 200
	maxTombstones = 500
)

// Event is one input to the reducer.
type Event interface{ event() }

// Ack settles the send, retry or edit of the version written at TS.
type Ack struct {
	ID string
	TS int64
}

type (
	// History is the initial bulk fetch.
	History struct{ Messages []Message }
	// LocalSend appends an optimistic message.
	LocalSend  struct{ Message Message }
	SendAck    Ack
	SendFailed Ack
	Retry      struct{ ID string }
	RowInsert  struct{ Message Message }
	RowUpdate  struct{ Message Message }
	RowDelete  struct{ ID string }
	// Broadcast is the ephemeral fallback echo of a message.
	Broadcast struct{ Message Message }
	LocalEdit struct {
		ID   string
		Text string
		TS   int64
	}
	EditAck     Ack
	EditFailed  Ack
	LocalDelete struct{ ID string }
	// Restore puts back a message whose delete failed.
	Restore struct{ Message Message }
)

func (History) event()     {}
func (LocalSend) event()   {}
func (SendAck) event()     {}
func (SendFailed) event()  {}
func (Retry) event()       {}
func (RowInsert) event()   {}
func (RowUpdate) event()   {}
func (RowDelete) event()   {}
func (Broadcast) event()   {}
func (LocalEdit) event()   {}
func (EditAck) event()     {}
func (EditFailed) event()  {}
func (LocalDelete) event() {}
func (Restore) event()     {}

// State is the reconciled view. The zero value is an empty room. Values are
// never mutated by Reduce.
type State struct {
	Messages []Message
	// deleted ids, oldest first; a late history or echo cannot resurrect them
	tombstones []string
}

func (s State) Find(id string) (Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func (s State) dead(id string) bool {
	return slices.Contains(s.tombstones, id)
}

// merge folds in into cur. Text and timestamp follow the newer timestamp;
// at equal timestamps the more settled status wins, so a confirmed message
// never falls back to sending. Edited is sticky.
func merge(cur, in Message) Message {
	out := cur
	switch {
	case in.TS > cur.TS:
		out.Text, out.TS, out.Status = in.Text, in.TS, in.Status
	case in.TS == cur.TS:
		if in.Status.rank() >= cur.Status.rank() {
			out.Text, out.Status = in.Text, in.Status
		}
	}
	if out.UID == "" {
		out.UID = in.UID
	}
	if out.User == "" {
		out.User = in.User
	}
	out.Edited = cur.Edited || in.Edited
	return out
}

func (s State) upsert(m Message) State {
	if s.dead(m.ID) {
		return s
	}
	for i, cur := range s.Messages {
		if cur.ID == m.ID {
			s.Messages[i] = merge(cur, m)
			return s
		}
	}
	s.Messages = append(s.Messages, m)
	return s
}

func (s State) set(id string, ts int64, from []Status, to Status) State {
	for i, cur := range s.Messages {
		if cur.ID == id && (ts == 0 || cur.TS == ts) && slices.Contains(from, cur.Status) {
			s.Messages[i].Status = to
		}
	}
	return s
}

func (s State) remove(id string) State {
	s.Messages = slices.DeleteFunc(s.Messages, func(m Message) bool { return m.ID == id })
	if !s.dead(id) {
		s.tombstones = append(s.tombstones, id)
		if len(s.tombstones) > maxTombstones {
			s.tombstones = s.tombstones[len(s.tombstones)-maxTombstones:]
		}
	}
	return s
}

func (s State) clone() State {
	return State{
		Messages:   slices.Clone(s.Messages),
		tombstones: slices.Clone(s.tombstones),
	}
}

// Reduce applies ev to s and returns the new state, ordered by ascending
// timestamp and capped to the newest MaxMessages entries.
func Reduce(s State, ev Event) State {
	s = s.clone()

	switch e := ev.(type) {
	case History:
		for _, m := range e.Messages {
			m.Status = StatusSent
			s = s.upsert(m)
		}
	case LocalSend:
		m := e.Message
		if m.Status == "" {
			m.Status = StatusSending
		}
		s = s.upsert(m)
	case SendAck:
		s = s.set(e.ID, e.TS, []Status{StatusSending, StatusFailed}, StatusSent)
	case SendFailed:
		s = s.set(e.ID, e.TS, []Status{StatusSending}, StatusFailed)
	case Retry:
		s = s.set(e.ID, 0, []Status{StatusFailed}, StatusSending)
	case RowInsert:
		m := e.Message
		m.Status = StatusSent
		s = s.upsert(m)
	case RowUpdate:
		m := e.Message
		m.Status, m.Edited = StatusSent, true
		s = s.upsert(m)
	case RowDelete:
		s = s.remove(e.ID)
	case Broadcast:
		m := e.Message
		m.Status = StatusSent
		s = s.upsert(m)
	case LocalEdit:
		for i, cur := range s.Messages {
			if cur.ID == e.ID {
				cur.Text, cur.TS, cur.Status, cur.Edited = e.Text, e.TS, StatusSending, true
				s.Messages[i] = cur
			}
		}
	case EditAck:
		s = s.set(e.ID, e.TS, []Status{StatusSending, StatusFailed}, StatusSent)
	case EditFailed:
		s = s.set(e.ID, e.TS, []Status{StatusSending}, StatusFailed)
	case LocalDelete:
		s = s.remove(e.ID)
	case Restore:
		s.tombstones = slices.DeleteFunc(s.tombstones, func(id string) bool { return id == e.Message.ID })
		s = s.upsert(e.Message)
	}

	sort.SliceStable(s.Messages, func(i, j int) bool { return s.Messages[i].TS < s.Messages[j].TS })
	if len(s.Messages) > MaxMessages {
		s.Messages = s.Messages[len(s.Messages)-MaxMessages:]
	}
	return s
}

// ReduceAll folds events left to right.
func ReduceAll(s State, events ...Event) State {
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}
