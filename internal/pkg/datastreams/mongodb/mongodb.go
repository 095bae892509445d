package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Handler keeps one document per run token up to date with the latest
// status, input configuration and results of that run.
type Handler struct {
	pid    uuid.UUID
	inbox  []<-chan msg.Msg
	config Config
	log    *logrus.Entry
	stop   chan struct{}
	done   chan struct{}
}

type Config struct {
	URI        string `json:"URI" yaml:"uri"`
	Database   string `json:"Database" yaml:"database"`
	Collection string `json:"Collection" yaml:"collection"`
}

// New subscribes a handler to the run topics of system.
func New(cfg Config, system msg.Publisher, log logrus.FieldLogger) (*Handler, error) {
	if cfg.Database == "" {
		cfg.Database = "planner"
	}
	if cfg.Collection == "" {
		cfg.Collection = "runs"
	}
	pid := uuid.New()
	var inbox []<-chan msg.Msg
	for _, topic := range []msg.Topic{msg.Status, msg.Config, msg.Result} {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			return nil, err
		}
		inbox = append(inbox, ch)
	}
	return &Handler{
		pid:    pid,
		inbox:  inbox,
		config: cfg,
		log:    logging.Component(log, "Mongo"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

// statusUpdate builds the upsert for m. Each topic owns one field of the
// run document.
func statusUpdate(m msg.Msg, now time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M{
			m.Topic().String(): m.Payload(),
			"updated":          now.UTC(),
		}},
		{Key: "$setOnInsert", Value: bson.M{
			"token":   m.PID().String(),
			"created": now.UTC(),
		}},
	}
}

func filter(m msg.Msg) bson.M {
	return bson.M{"token": m.PID().String()}
}

// Stop drains pending events and waits for Process to return. It must
// only be called after Process was started. Close the publisher first so
// that nothing is published after the drain.
func (h *Handler) Stop() {
	close(h.stop)
	<-h.done
}

// Process connects to the database and upserts run documents until Stop.
func (h *Handler) Process() {
	defer close(h.done)
	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(h.config.URI))
	if err != nil {
		h.log.WithError(err).Error("unable to connect")
		return
	}
	defer client.Disconnect(ctx)

	runs := client.Database(h.config.Database).Collection(h.config.Collection)
	upsert := func(m msg.Msg) {
		opts := options.Update().SetUpsert(true)
		if _, err := runs.UpdateOne(ctx, filter(m), statusUpdate(m, time.Now()), opts); err != nil {
			h.log.WithError(err).WithField("token", m.PID()).Warn("upsert failed")
		}
	}
	h.consume(upsert)
	h.log.Info("process shutdown")
}

// consume hands every subscribed message to handle until Stop, then the
// ones still buffered.
func (h *Handler) consume(handle func(msg.Msg)) {
	msg.Consume(h.stop, handle, h.inbox...)
}
