// Package telemetry defines the outbound payload schemas and their encodings.
//
// Field names are the wire contract shared with the host dashboards. Every
// payload carries Timestamp, the node uptime in milliseconds.
package telemetry

import "math"

// Channel is the logical outbound stream a payload belongs to.
type Channel string

const (
	Data   Channel = "data"
	Status Channel = "status"
)

// Payload is anything that can be sent to the host.
type Payload interface {
	Channel() Channel
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// StatusPayload describes the node itself.
type StatusPayload struct {
	Status    string `json:"status" msgpack:"status"`
	Mode      string `json:"mode" msgpack:"mode"`
	Uptime    int64  `json:"uptime" msgpack:"uptime"`
	FreeHeap  uint64 `json:"free_heap" msgpack:"free_heap"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`
}

func (StatusPayload) Channel() Channel { return Status }

// IdlePayload is the heartbeat sent while no acquisition mode is active.
type IdlePayload struct {
	Status    string `json:"status" msgpack:"status"`
	Uptime    int64  `json:"uptime" msgpack:"uptime"`
	FreeHeap  uint64 `json:"free_heap" msgpack:"free_heap"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`
}

func (IdlePayload) Channel() Channel { return Data }

// VitalsPayload is the HR_SPO2 report.
type VitalsPayload struct {
	HeartRate float64 `json:"hr" msgpack:"hr"`
	SpO2      float64 `json:"spo2" msgpack:"spo2"`
	AX        float64 `json:"ax" msgpack:"ax"`
	AY        float64 `json:"ay" msgpack:"ay"`
	AZ        float64 `json:"az" msgpack:"az"`
	Timestamp int64   `json:"timestamp" msgpack:"timestamp"`
}

func (VitalsPayload) Channel() Channel { return Data }

// RawPayload is the RAW_DATA report.
type RawPayload struct {
	HeartRate float64 `json:"hr" msgpack:"hr"`
	SpO2      float64 `json:"spo2" msgpack:"spo2"`
	IR        uint16  `json:"ir" msgpack:"ir"`
	Red       uint16  `json:"red" msgpack:"red"`
	AX        float64 `json:"ax" msgpack:"ax"`
	AY        float64 `json:"ay" msgpack:"ay"`
	AZ        float64 `json:"az" msgpack:"az"`
	Timestamp int64   `json:"timestamp" msgpack:"timestamp"`
}

func (RawPayload) Channel() Channel { return Data }

// TemperaturePayload carries the last completed die temperature in Celsius.
type TemperaturePayload struct {
	Temperature float64 `json:"temperature" msgpack:"temperature"`
	Timestamp   int64   `json:"timestamp" msgpack:"timestamp"`
}

func (TemperaturePayload) Channel() Channel { return Data }

// ForcePayload is one FORCE_TEST sample.
type ForcePayload struct {
	IR         uint16 `json:"ir" msgpack:"ir"`
	Red        uint16 `json:"red" msgpack:"red"`
	FSR        uint16 `json:"fsr" msgpack:"fsr"`
	Label      string `json:"label" msgpack:"label"`
	Collecting bool   `json:"collecting" msgpack:"collecting"`
	Timestamp  int64  `json:"timestamp" msgpack:"timestamp"`
}

func (ForcePayload) Channel() Channel { return Data }

// DistancePayload is one DISTANCE_TEST sample.
type DistancePayload struct {
	IR         uint16 `json:"ir" msgpack:"ir"`
	Red        uint16 `json:"red" msgpack:"red"`
	LED        string `json:"led" msgpack:"led"`
	DistanceMM int    `json:"distance_mm" msgpack:"distance_mm"`
	Collecting bool   `json:"collecting" msgpack:"collecting"`
	Timestamp  int64  `json:"timestamp" msgpack:"timestamp"`
}

func (DistancePayload) Channel() Channel { return Data }

// DistanceAveragePayload is the running mean over a DISTANCE_TEST session.
type DistanceAveragePayload struct {
	Type       string  `json:"type" msgpack:"type"`
	LED        string  `json:"led" msgpack:"led"`
	DistanceMM int     `json:"distance_mm" msgpack:"distance_mm"`
	AvgIR      float64 `json:"avg_ir" msgpack:"avg_ir"`
	AvgRed     float64 `json:"avg_red" msgpack:"avg_red"`
	Samples    int     `json:"samples" msgpack:"samples"`
	Timestamp  int64   `json:"timestamp" msgpack:"timestamp"`
}

func (DistanceAveragePayload) Channel() Channel { return Data }

// QualityPayload is the QUALITY report.
type QualityPayload struct {
	HeartRate      float64 `json:"hr" msgpack:"hr"`
	SpO2           float64 `json:"spo2" msgpack:"spo2"`
	AX             float64 `json:"ax" msgpack:"ax"`
	AY             float64 `json:"ay" msgpack:"ay"`
	AZ             float64 `json:"az" msgpack:"az"`
	Quality        int     `json:"quality" msgpack:"quality"`
	QualityPercent float64 `json:"quality_percent" msgpack:"quality_percent"`
	AccelMag       float64 `json:"accel_mag" msgpack:"accel_mag"`
	Timestamp      int64   `json:"timestamp" msgpack:"timestamp"`
}

func (QualityPayload) Channel() Channel { return Data }
