package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_FieldNames(t *testing.T) {
	b, err := JSON{}.Encode(ForcePayload{IR: 51000, Red: 42000, FSR: 812, Label: "rest", Collecting: true, Timestamp: 1200})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ir":51000,"red":42000,"fsr":812,"label":"rest","collecting":true,"timestamp":1200}`, string(b))

	b, err = JSON{}.Encode(DistanceAveragePayload{Type: "average", LED: "IR", DistanceMM: 20, AvgIR: 1.5, AvgRed: 2.5, Samples: 10, Timestamp: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"average","led":"IR","distance_mm":20,"avg_ir":1.5,"avg_red":2.5,"samples":10,"timestamp":3}`, string(b))
}

func TestMsgpack_UsesSameKeys(t *testing.T) {
	enc := Msgpack{}
	b, err := enc.Encode(QualityPayload{HeartRate: 72.5, SpO2: 97, Quality: 1, QualityPercent: 50, AccelMag: 1.01, Timestamp: 9})
	require.NoError(t, err)

	m, err := enc.Decode(b)
	require.NoError(t, err)
	assert.EqualValues(t, 72.5, m["hr"])
	assert.EqualValues(t, 1, m["quality"])
	assert.EqualValues(t, 50, m["quality_percent"])
	assert.EqualValues(t, 9, m["timestamp"])
}

func TestNewEncoder(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		enc, err := NewEncoder(name)
		require.NoError(t, err)
		assert.Equal(t, name, enc.Name())
	}
	_, err := NewEncoder("xml")
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, Status, StatusPayload{}.Channel())
	assert.Equal(t, Data, IdlePayload{}.Channel())
	assert.Equal(t, Data, TemperaturePayload{}.Channel())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 72.3, Round(72.345, 1))
	assert.Equal(t, 1.01, Round(1.0149, 2))
	assert.Equal(t, 97.0, Round(97, 0))
}
