// Package dump persists a solved network as a snappy compressed BSON
// snapshot and reads it back.
package dump

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"go.mongodb.org/mongo-driver/bson"
)

// FileName is the name of the snapshot inside a run's dump directory.
const FileName = "oemof_es.dump"

const version = 1

// ErrNoResults is returned when a network without results is dumped.
var ErrNoResults = errors.New("dump: network has no results")

// Snapshot is the stored form of a solved network.
type Snapshot struct {
	Version   int              `bson:"version"`
	Created   time.Time        `bson:"created"`
	TimeIndex []time.Time      `bson:"timeindex"`
	Step      time.Duration    `bson:"step"`
	Nodes     []Node           `bson:"nodes"`
	Edges     []Edge           `bson:"edges"`
	Results   *network.Results `bson:"results"`
}

// Node records one node by label and variant.
type Node struct {
	Label string `bson:"label"`
	Kind  string `bson:"kind"`
}

// Edge records one flow of the network.
type Edge struct {
	From         string   `bson:"from"`
	To           string   `bson:"to"`
	NominalValue *float64 `bson:"nominal_value,omitempty"`
	Invest       bool     `bson:"invest"`
	Nonconvex    bool     `bson:"nonconvex"`
}

// Take builds a snapshot of net and its results.
func Take(net *network.Network) (*Snapshot, error) {
	if net.Results == nil {
		return nil, ErrNoResults
	}
	s := &Snapshot{
		Version:   version,
		Created:   time.Now().UTC(),
		TimeIndex: net.TimeIndex(),
		Step:      net.Step(),
		Results:   net.Results,
	}
	for _, n := range net.Nodes() {
		s.Nodes = append(s.Nodes, Node{Label: n.Label(), Kind: network.KindOf(n)})
	}
	for _, e := range net.Edges() {
		s.Edges = append(s.Edges, Edge{
			From:         e.From.Label(),
			To:           e.To.Label(),
			NominalValue: e.Flow.NominalValue,
			Invest:       e.Flow.Investment != nil,
			Nonconvex:    e.Flow.NonConvex != nil,
		})
	}
	return s, nil
}

// Encode marshals and compresses the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	raw, err := bson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("dump: encode: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("dump: decompress: %w", err)
	}
	s := &Snapshot{}
	if err := bson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("dump: decode: %w", err)
	}
	if s.Version != version {
		return nil, fmt.Errorf("dump: unsupported version %d", s.Version)
	}
	return s, nil
}

// Write stores a snapshot of net at path.
func Write(path string, net *network.Network) error {
	s, err := Take(net)
	if err != nil {
		return err
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads the snapshot at path.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
