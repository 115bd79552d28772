package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/agvfleet/core/mqtt"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

// MockClient records commands and lets tests inject inbound traffic.
type MockClient struct {
	mu       sync.Mutex
	Commands []coremqtt.Command
	FailIDs  map[string]bool
	handlers coremqtt.Handlers
	seq      int
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{FailIDs: make(map[string]bool)}
}

// SendCommand records the command or fails for robots listed in FailIDs.
func (m *MockClient) SendCommand(cmd coremqtt.Command) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[cmd.RobotID] {
		return "", fmt.Errorf("publish failed")
	}
	m.seq++
	if cmd.CommandID == "" {
		cmd.CommandID = fmt.Sprintf("cmd-%d", m.seq)
	}
	m.Commands = append(m.Commands, cmd)
	return cmd.CommandID, nil
}

// Sent returns a copy of the recorded commands.
func (m *MockClient) Sent() []coremqtt.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.Command(nil), m.Commands...)
}

// Subscribe stores the handlers.
func (m *MockClient) Subscribe(h coremqtt.Handlers) error {
	m.mu.Lock()
	m.handlers = h
	m.mu.Unlock()
	return nil
}

func (m *MockClient) current() coremqtt.Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers
}

// EmitState delivers a robot state as if received from the broker.
func (m *MockClient) EmitState(rec snapshot.RobotRecord) {
	if h := m.current(); h.OnState != nil {
		h.OnState(rec)
	}
}

// EmitLifecycle delivers a lifecycle report.
func (m *MockClient) EmitLifecycle(ev coremqtt.Lifecycle) {
	if h := m.current(); h.OnLifecycle != nil {
		h.OnLifecycle(ev)
	}
}

// EmitTasks delivers a task batch.
func (m *MockClient) EmitTasks(recs []snapshot.TaskRecord) {
	if h := m.current(); h.OnTasks != nil {
		h.OnTasks(recs)
	}
}

// Disconnect is a no-op.
func (m *MockClient) Disconnect() {}
