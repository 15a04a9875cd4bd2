// Package protocol is the JSON wire codec between the simulator and the
// decision engine. Messages carry a common timestamp and a list of typed
// events; decisions are encoded the same way in the opposite direction.
package protocol

import (
	"encoding/json"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/internal/scheduler/engine"
)

// Wire event type names.
const (
	helloEvent            = "BatsimHelloEvent"
	simulationBeginsEvent = "SimulationBeginsEvent"
	jobSubmittedEvent     = "JobSubmittedEvent"
	jobCompletedEvent     = "JobCompletedEvent"
	allStaticJobsEvent    = "AllStaticJobsHaveBeenSubmittedEvent"

	edcHelloEvent   = "EDCHelloEvent"
	rejectJobEvent  = "RejectJobEvent"
	executeJobEvent = "ExecuteJobEvent"
)

type wireMessage struct {
	Now    float64     `json:"now"`
	Events []wireEvent `json:"events"`
}

type wireEvent struct {
	Timestamp float64                `json:"timestamp"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type simulationBeginsData struct {
	HostCount int `mapstructure:"nb_computation_hosts"`
}

type jobSubmittedData struct {
	JobId string `mapstructure:"job_id"`
	Job   struct {
		ResourceRequest int     `mapstructure:"resource_request"`
		Walltime        float64 `mapstructure:"walltime"`
	} `mapstructure:"job"`
}

type jobCompletedData struct {
	JobId string `mapstructure:"job_id"`
}

// Decode parses an event batch. Unknown event types are skipped for forward
// compatibility; malformed payloads of known types are fatal for the tick.
func Decode(data []byte) (float64, []engine.Event, error) {
	var message wireMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return 0, nil, errors.Wrap(err, "failed to decode event batch")
	}

	var result *multierror.Error
	events := make([]engine.Event, 0, len(message.Events))
	for _, wire := range message.Events {
		event, ok, err := decodeEvent(wire)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "event %q", wire.Type))
			continue
		}
		if !ok {
			log.WithField("type", wire.Type).Debug("ignoring unknown event type")
			continue
		}
		events = append(events, event)
	}
	if err := result.ErrorOrNil(); err != nil {
		return 0, nil, err
	}
	return message.Now, events, nil
}

func decodeEvent(wire wireEvent) (engine.Event, bool, error) {
	switch wire.Type {
	case helloEvent:
		return engine.Hello{}, true, nil
	case simulationBeginsEvent:
		var data simulationBeginsData
		if err := decodeData(wire.Data, &data); err != nil {
			return nil, false, err
		}
		return engine.SimulationBegins{HostCount: data.HostCount}, true, nil
	case jobSubmittedEvent:
		var data jobSubmittedData
		if err := decodeData(wire.Data, &data); err != nil {
			return nil, false, err
		}
		return engine.JobSubmitted{
			Id:       data.JobId,
			Width:    data.Job.ResourceRequest,
			Walltime: data.Job.Walltime,
		}, true, nil
	case jobCompletedEvent:
		var data jobCompletedData
		if err := decodeData(wire.Data, &data); err != nil {
			return nil, false, err
		}
		return engine.JobCompleted{Id: data.JobId}, true, nil
	case allStaticJobsEvent:
		return engine.AllStaticJobsSubmitted{}, true, nil
	default:
		return nil, false, nil
	}
}

func decodeData(raw map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(decoder.Decode(raw))
}

// Encode serialises a decision batch taken at time now.
func Encode(now float64, decisions []engine.Decision) ([]byte, error) {
	message := wireMessage{Now: now, Events: make([]wireEvent, 0, len(decisions))}
	for _, decision := range decisions {
		wire, err := encodeDecision(now, decision)
		if err != nil {
			return nil, err
		}
		message.Events = append(message.Events, wire)
	}
	encoded, err := json.Marshal(message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode decision batch")
	}
	return encoded, nil
}

func encodeDecision(now float64, decision engine.Decision) (wireEvent, error) {
	switch d := decision.(type) {
	case engine.HelloReply:
		return wireEvent{
			Timestamp: now,
			Type:      edcHelloEvent,
			Data:      map[string]interface{}{"edc_name": d.Name, "edc_version": d.Version},
		}, nil
	case engine.RejectJob:
		return wireEvent{
			Timestamp: now,
			Type:      rejectJobEvent,
			Data:      map[string]interface{}{"job_id": d.JobId},
		}, nil
	case engine.ExecuteJob:
		return wireEvent{
			Timestamp: now,
			Type:      executeJobEvent,
			Data:      map[string]interface{}{"job_id": d.JobId, "alloc": d.Hosts},
		}, nil
	default:
		return wireEvent{}, errors.Errorf("unknown decision type %T", decision)
	}
}
