package natshandler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/sirupsen/logrus"

	nats "github.com/nats-io/nats.go"
)

// Handler republishes run events on NATS subjects of the form
// <subject>.<run token>.<topic>.
type Handler struct {
	pid    uuid.UUID
	inbox  map[msg.Topic]<-chan msg.Msg
	config Config
	log    *logrus.Entry
	stop   chan struct{}
	done   chan struct{}
}

// Config selects the server and subject prefix.
type Config struct {
	Server  string `json:"Server" yaml:"server"`
	Subject string `json:"Subject" yaml:"subject"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

// New subscribes a handler to the status, config and result topics of
// system.
func New(cfg Config, system msg.Publisher, log logrus.FieldLogger) (*Handler, error) {
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "planner.runs"
	}
	pid := uuid.New()
	inbox := make(map[msg.Topic]<-chan msg.Msg)
	for _, topic := range []msg.Topic{msg.Status, msg.Config, msg.Result} {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return nil, err
		}
		inbox[topic] = ch
	}
	return &Handler{
		pid:    pid,
		inbox:  inbox,
		config: cfg,
		log:    logging.Component(log, "NATS client"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Stop drains pending events and waits for Process to return. It must
// only be called after Process was started. Close the publisher first so
// that nothing is published after the drain.
func (h *Handler) Stop() {
	close(h.stop)
	<-h.done
}

// Process connects to the server and publishes events until Stop.
func (h *Handler) Process() {
	defer close(h.done)
	h.log.Info("process started")
	nc, err := nats.Connect(h.config.Server, nats.Name("cgc_planner"))
	if err != nil {
		h.log.WithError(err).Error("unable to connect to nats server")
		return
	}
	defer nc.Close()

	h.consume(func(m msg.Msg) { h.publish(nc, m) })
	if err := nc.Flush(); err != nil {
		h.log.WithError(err).Warn("flush failed")
	}
	h.log.Info("process shutdown")
}

// consume hands every subscribed message to handle until Stop, then the
// ones still buffered.
func (h *Handler) consume(handle func(msg.Msg)) {
	msg.Consume(h.stop, handle, h.inbox[msg.Status], h.inbox[msg.Config], h.inbox[msg.Result])
}

func (h *Handler) publish(nc *nats.Conn, m msg.Msg) {
	data, err := encode(m)
	if err != nil {
		h.log.WithError(err).Warn("unable to encode event")
		return
	}
	if err := nc.Publish(subject(h.config.Subject, m), data); err != nil {
		h.log.WithError(err).Warn("unable to publish to nats server")
	}
}

func subject(prefix string, m msg.Msg) string {
	return fmt.Sprintf("%s.%s.%s", prefix, m.PID(), m.Topic())
}

func encode(m msg.Msg) ([]byte, error) {
	return json.Marshal(m.Payload())
}
