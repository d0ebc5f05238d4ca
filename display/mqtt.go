package display

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MirrorConfig locates the broker for the frame mirror.
type MirrorConfig struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
}

// publisher is the part of mqtt.Client the mirror uses.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Mirror publishes the logical content of each distinct frame as JSON so that
// a remote dashboard can follow the appliance. Scroll ticks of the same text
// are not republished.
type Mirror struct {
	mu     sync.Mutex
	client publisher
	topic  string
	logger *log.Logger
	now    func() time.Time

	lastText    string
	lastCaption string
	sent        bool
}

type mirrorPayload struct {
	Text    string    `json:"text"`
	Caption string    `json:"caption,omitempty"`
	Rows    []string  `json:"rows,omitempty"`
	Blank   bool      `json:"blank"`
	At      time.Time `json:"at"`
}

// ConnectMirror dials the broker. Auto-reconnect keeps the mirror alive across
// broker restarts; frames published while disconnected are dropped.
func ConnectMirror(cfg MirrorConfig, logger *log.Logger) (*Mirror, error) {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
	opts.AddBroker(brokerURL)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("newsboard-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Printf("Mirror: connection lost: %v", err)
		}
	})

	client := mqtt.NewClient(opts)
	if logger != nil {
		logger.Printf("Mirror: connecting to %s...", brokerURL)
	}
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mirror connect %s: %w", brokerURL, token.Error())
	}
	return newMirror(client, cfg.Topic, logger), nil
}

func newMirror(client publisher, topic string, logger *log.Logger) *Mirror {
	return &Mirror{client: client, topic: topic, logger: logger, now: time.Now}
}

func (m *Mirror) Push(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent && f.Text == m.lastText && f.Caption == m.lastCaption {
		return nil
	}
	rows := f.Rows
	if f.Offset != 0 {
		rows = nil
	}
	if err := m.publish(mirrorPayload{Text: f.Text, Caption: f.Caption, Rows: rows, Blank: f.Blank()}); err != nil {
		return err
	}
	m.lastText, m.lastCaption, m.sent = f.Text, f.Caption, true
	return nil
}

func (m *Mirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.publish(mirrorPayload{Blank: true}); err != nil {
		return err
	}
	m.lastText, m.lastCaption, m.sent = "", "", true
	return nil
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

// publish is fire-and-forget; delivery errors surface through the token's
// completion, which is logged asynchronously.
func (m *Mirror) publish(p mirrorPayload) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("mirror not connected")
	}
	p.At = m.now().UTC()
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal mirror frame: %w", err)
	}
	token := m.client.Publish(m.topic, 0, true, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil && m.logger != nil {
			m.logger.Printf("Mirror: publish failed: %v", err)
		}
	}()
	return nil
}
