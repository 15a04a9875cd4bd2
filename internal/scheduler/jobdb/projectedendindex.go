package jobdb

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// projectedEndIndexer indexes runs by their projected end time. Simulation times
// are non-negative, so the big-endian IEEE 754 bit pattern sorts in numeric order.
type projectedEndIndexer struct{}

func encodeTime(t float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(t))
	return buf
}

func (projectedEndIndexer) FromObject(obj interface{}) (bool, []byte, error) {
	run, ok := obj.(*Run)
	if !ok {
		return false, nil, errors.Errorf("expected *Run, got %T", obj)
	}
	return true, encodeTime(run.ProjectedEnd), nil
}

func (projectedEndIndexer) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, errors.Errorf("expected exactly one argument, got %d", len(args))
	}
	t, ok := args[0].(float64)
	if !ok {
		return nil, errors.Errorf("expected float64, got %T", args[0])
	}
	return encodeTime(t), nil
}
