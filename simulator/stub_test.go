package simulator

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type stubToken struct{}

func (stubToken) Wait() bool                     { return true }
func (stubToken) WaitTimeout(time.Duration) bool { return true }
func (stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (stubToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type stubClient struct {
	mu       sync.Mutex
	pubs     []published
	handlers map[string]paho.MessageHandler
}

func newStubClient() *stubClient {
	return &stubClient{handlers: map[string]paho.MessageHandler{}}
}

func (s *stubClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	s.mu.Lock()
	s.pubs = append(s.pubs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	s.mu.Unlock()
	return stubToken{}
}

func (s *stubClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	s.mu.Lock()
	s.handlers[topic] = cb
	s.mu.Unlock()
	return stubToken{}
}

func (s *stubClient) deliver(topic string, payload []byte) bool {
	s.mu.Lock()
	h, ok := s.handlers[topic]
	s.mu.Unlock()
	if ok {
		h(nil, stubMessage{topic: topic, payload: payload})
	}
	return ok
}

func (s *stubClient) on(topic string) []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []published
	for _, p := range s.pubs {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type stubMessage struct {
	topic   string
	payload []byte
}

func (stubMessage) Duplicate() bool   { return false }
func (stubMessage) Qos() byte         { return 1 }
func (stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string   { return m.topic }
func (stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte { return m.payload }
func (stubMessage) Ack()              {}
