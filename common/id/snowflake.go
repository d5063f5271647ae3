package id

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// MaxNode is the largest node id a default (10-bit) snowflake node takes.
// Every pulse replica writing to the same store needs its own node id.
const MaxNode int64 = 1023

var ErrNodeOutOfRange = errors.New("snowflake node id out of range")

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the process-wide generator. Later calls are no-ops.
func Init(nodeID int64) error {
	if nodeID < 0 || nodeID > MaxNode {
		return fmt.Errorf("%w: %d, want 0..%d", ErrNodeOutOfRange, nodeID, MaxNode)
	}
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered id for cycles, comments and users.
func New() int64 {
	if node == nil {
		panic("id.New called before id.Init")
	}
	return node.Generate().Int64()
}

// Parse reads an id rendered with strconv.FormatInt, as the task store hands
// them out.
func Parse(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("id %d must be positive", v)
	}
	return v, nil
}
