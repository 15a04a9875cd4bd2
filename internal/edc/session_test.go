package edc

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFlagValidation(t *testing.T) {
	tests := map[string]struct {
		flags    uint32
		expected error
	}{
		"no format":       {flags: 0, expected: ErrUnknownFormat},
		"unknown bit":     {flags: 0x4, expected: ErrUnknownFormat},
		"json and extras": {flags: FormatJSON | 0x8, expected: ErrUnknownFormat},
		"both formats":    {flags: FormatBinary | FormatJSON, expected: ErrUnknownFormat},
		"binary only":     {flags: FormatBinary, expected: ErrBinaryUnsupported},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Init(nil, tc.flags)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expected))
		})
	}
}

func TestInitWithDefaults(t *testing.T) {
	session, err := Init(nil, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, session.Deinit())
}

func TestInitRejectsBadConfiguration(t *testing.T) {
	_, err := Init([]byte(`{"policy": "perpetualmotion"}`), FormatJSON)
	assert.Error(t, err)

	_, err = Init([]byte(`{"budgetFraction": 1.5}`), FormatJSON)
	assert.Error(t, err)
}

func TestTakeDecisionsEndToEnd(t *testing.T) {
	session, err := Init([]byte(`{"policy": "powercap", "pIdleWatts": 100, "pCompWatts": 200}`), FormatJSON)
	require.NoError(t, err)
	defer func() { _ = session.Deinit() }()

	out, err := session.TakeDecisions([]byte(`{
		"now": 0.0,
		"events": [
			{"timestamp": 0.0, "type": "BatsimHelloEvent", "data": {}},
			{"timestamp": 0.0, "type": "SimulationBeginsEvent", "data": {"nb_computation_hosts": 4}},
			{"timestamp": 0.0, "type": "JobSubmittedEvent", "data": {"job_id": "j1", "job": {"resource_request": 2, "walltime": 10}}}
		]
	}`))
	require.NoError(t, err)

	var message struct {
		Now    float64 `json:"now"`
		Events []struct {
			Type string                 `json:"type"`
			Data map[string]interface{} `json:"data"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(out, &message))
	require.Len(t, message.Events, 2)
	assert.Equal(t, "EDCHelloEvent", message.Events[0].Type)
	assert.Equal(t, "powercap", message.Events[0].Data["edc_name"])
	assert.Equal(t, "ExecuteJobEvent", message.Events[1].Type)
	assert.Equal(t, "j1", message.Events[1].Data["job_id"])
	assert.Equal(t, "0-1", message.Events[1].Data["alloc"])

	snapshot := session.Snapshot()
	assert.Equal(t, 2, snapshot.FreeHosts)
	assert.Equal(t, uint64(1), snapshot.Launched)
}

func TestTakeDecisionsDecoderFailureIsFatal(t *testing.T) {
	session, err := Init(nil, FormatJSON)
	require.NoError(t, err)
	defer func() { _ = session.Deinit() }()

	_, err = session.TakeDecisions([]byte(`not json`))
	assert.Error(t, err)
}

func TestDeinitClosesSession(t *testing.T) {
	session, err := Init(nil, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, session.Deinit())

	_, err = session.TakeDecisions([]byte(`{"now": 0, "events": []}`))
	assert.True(t, errors.Is(err, ErrSessionClosed))
	assert.True(t, errors.Is(session.Deinit(), ErrSessionClosed))
}
