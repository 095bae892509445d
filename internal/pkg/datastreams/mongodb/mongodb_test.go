package mongodb

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/logging"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func TestNewDefaults(t *testing.T) {
	h, err := New(Config{URI: "mongodb://localhost:27017"}, msg.NewPublisher(uuid.New()), logging.Noop())
	assert.NilError(t, err)
	assert.Equal(t, h.config.Database, "planner")
	assert.Equal(t, h.config.Collection, "runs")
}

func TestStatusUpdate(t *testing.T) {
	token := uuid.New()
	now := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	update := statusUpdate(msg.New(token, msg.Status, "solved"), now)

	assert.Equal(t, len(update), 2)
	assert.Equal(t, update[0].Key, "$set")
	set := update[0].Value.(bson.M)
	assert.Equal(t, set["status"], "solved")
	assert.Equal(t, set["updated"], now)

	insert := update[1].Value.(bson.M)
	assert.Equal(t, insert["token"], token.String())
	assert.DeepEqual(t, filter(msg.New(token, msg.Result, nil)), bson.M{"token": token.String()})

	// the document must serialise
	_, err := bson.Marshal(update)
	assert.NilError(t, err)
}

func TestConsumeKeepsTerminalStatus(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New(Config{}, pub, logging.Noop())
	assert.NilError(t, err)

	token := uuid.New()
	pub.Forward(msg.New(token, msg.Config, "cfg"))
	for _, state := range []string{"running", "running", "solved"} {
		pub.Forward(msg.New(token, msg.Status, state))
	}
	pub.Forward(msg.New(token, msg.Result, "results"))
	pub.Close()
	close(h.stop)

	var mux sync.Mutex
	var states []string
	topics := make(map[msg.Topic]int)
	h.consume(func(m msg.Msg) {
		mux.Lock()
		defer mux.Unlock()
		topics[m.Topic()]++
		if m.Topic() == msg.Status {
			states = append(states, m.Payload().(string))
		}
	})
	assert.DeepEqual(t, states, []string{"running", "running", "solved"})
	assert.Equal(t, topics[msg.Config], 1)
	assert.Equal(t, topics[msg.Result], 1)
}

func TestProcess(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	pub := msg.NewPublisher(uuid.New())
	h, err := New(Config{URI: uri, Database: "planner_test"}, pub, logging.Noop())
	assert.NilError(t, err)
	go h.Process()
	pub.Publish(msg.Status, "started")
	pub.Close()
	h.Stop()
}
