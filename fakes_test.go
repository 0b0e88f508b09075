package courier

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// In-memory store implementations shared by the service tests.

type memMessageStore struct {
	mu       sync.Mutex
	messages map[string]model.StoredMessage
	failFlag bool
	clears   int
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{messages: make(map[string]model.StoredMessage)}
}

func (s *memMessageStore) StoreMessage(_ context.Context, m *model.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFlag {
		return errors.New("store unavailable")
	}
	s.messages[m.ID] = *m
	return nil
}

func (s *memMessageStore) GetMessage(_ context.Context, id string) (model.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return model.StoredMessage{}, ErrNoData
	}
	return m, nil
}

func (s *memMessageStore) UpdateMessageStatus(_ context.Context, id string, status model.MessageStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNoData
	}
	m.Status = status
	m.LastError.String = lastError
	m.LastError.Valid = lastError != ""
	s.messages[id] = m
	return nil
}

func (s *memMessageStore) GetPendingMessages(_ context.Context) ([]model.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredMessage
	for _, m := range s.messages {
		if m.Status == model.MessageStatusPending {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memMessageStore) ClearOldMessages(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	deleted := 0
	for id, m := range s.messages {
		if m.IsCleanable(maxAge) {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memMessageStore) status(id string) model.MessageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id].Status
}

func (s *memMessageStore) clearCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type memStateStore struct {
	mu        sync.Mutex
	queue     *model.QueueState
	conn      *model.ConnectionState
	failSaves bool
	saves     int
}

func newMemStateStore() *memStateStore {
	return &memStateStore{}
}

func (s *memStateStore) SaveQueueState(_ context.Context, st model.QueueState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("state store unavailable")
	}
	s.queue = &st
	s.saves++
	return nil
}

func (s *memStateStore) LoadQueueState(_ context.Context) (model.QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return model.QueueState{}, ErrNoData
	}
	return *s.queue, nil
}

func (s *memStateStore) SaveConnectivityState(_ context.Context, st model.ConnectionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("state store unavailable")
	}
	s.conn = &st
	return nil
}

func (s *memStateStore) LoadConnectivityState(_ context.Context) (model.ConnectionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return model.ConnectionState{}, ErrNoData
	}
	return *s.conn, nil
}

type memDeliveryLog struct {
	mu          sync.Mutex
	deliveries  []model.DeliveryRecord
	failures    []model.FailureRecord
	failAppends bool
	attempts    int
}

func newMemDeliveryLog() *memDeliveryLog {
	return &memDeliveryLog{}
}

func (l *memDeliveryLog) AppendDelivery(_ context.Context, r *model.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if l.failAppends {
		return errors.New("log unreachable")
	}
	r.ID = int64(len(l.deliveries) + 1)
	l.deliveries = append(l.deliveries, *r)
	return nil
}

func (l *memDeliveryLog) AppendFailure(_ context.Context, r *model.FailureRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.ID = int64(len(l.failures) + 1)
	l.failures = append(l.failures, *r)
	return nil
}

func (l *memDeliveryLog) deliveryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deliveries)
}

func (l *memDeliveryLog) attemptCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func (l *memDeliveryLog) setFailing(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAppends = fail
}

type memSequenceStore struct {
	mu        sync.Mutex
	records   []model.MessageSequence
	failSaves bool
}

func newMemSequenceStore() *memSequenceStore {
	return &memSequenceStore{}
}

func (s *memSequenceStore) Save(_ context.Context, rec *model.MessageSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("sequence store unavailable")
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *memSequenceStore) Update(_ context.Context, rec *model.MessageSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].MessageID == rec.MessageID {
			s.records[i] = *rec
		}
	}
	return nil
}

func (s *memSequenceStore) FindByMessageID(_ context.Context, messageID string) (model.MessageSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.MessageID == messageID {
			return rec, nil
		}
	}
	return model.MessageSequence{}, ErrNoData
}

func (s *memSequenceStore) FindByAgent(_ context.Context, agentID string) ([]model.MessageSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MessageSequence
	for _, rec := range s.records {
		if rec.AgentID == agentID {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (s *memSequenceStore) ListAll(_ context.Context) ([]model.MessageSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, ErrNoData
	}
	out := make([]model.MessageSequence, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (s *memSequenceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type memAckStore struct {
	mu   sync.Mutex
	acks map[string]model.Acknowledgment
}

func newMemAckStore() *memAckStore {
	return &memAckStore{acks: make(map[string]model.Acknowledgment)}
}

func (s *memAckStore) Save(_ context.Context, a *model.Acknowledgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[a.MessageID] = *a
	return nil
}

func (s *memAckStore) Load(_ context.Context, messageID string) (model.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.acks[messageID]
	if !ok {
		return model.Acknowledgment{}, ErrNoData
	}
	return a, nil
}

func (s *memAckStore) FindPending(_ context.Context) ([]model.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Acknowledgment
	for _, a := range s.acks {
		if a.Status == model.AckStatusPending {
			out = append(out, a)
		}
	}
	return out, nil
}

// recordingNotifications captures connectivity notifications for assertions.
type recordingNotifications struct {
	mu          sync.Mutex
	transitions []model.ConnectionState
}

func (n *recordingNotifications) NotifyDeliveryFailure(_ context.Context, _ *model.Message, _ error) error {
	return nil
}

func (n *recordingNotifications) NotifyDeadLetter(_ context.Context, _ model.DeadLetterEntry) error {
	return nil
}

func (n *recordingNotifications) NotifyConnectivityChanged(_ context.Context, state model.ConnectionState) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, state)
	return nil
}

func (n *recordingNotifications) statuses() []model.ConnectivityStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.ConnectivityStatus, len(n.transitions))
	for i, s := range n.transitions {
		out[i] = s.Status
	}
	return out
}

// testMessage builds a valid message for service tests.
func testMessage(sender, receiver string) model.Message {
	return model.NewMessage(
		model.MessageTypeTask,
		model.PriorityMedium,
		sender,
		receiver,
		json.RawMessage(`{"action":"roll","dice":"d20"}`),
	)
}
