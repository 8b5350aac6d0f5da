package analytics

import "time"

// Outcome labels how a connection ended.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeZeroResult Outcome = "zero_result"
)

// QueryEvent describes one served connection. Outcome is OutcomeOK,
// OutcomeZeroResult or an error kind such as "protocol_violation".
type QueryEvent struct {
	ConnID      string    `json:"conn_id"`
	RemoteAddr  string    `json:"remote_addr"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Mode        string    `json:"mode"`
	Count       int       `json:"count"`
	ItemsSent   int       `json:"items_sent"`
	Outcome     Outcome   `json:"outcome"`
	LatencyMs   int64     `json:"latency_ms"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

// Recorder accepts query events without blocking the caller.
type Recorder interface {
	Record(event QueryEvent)
}

type multiRecorder []Recorder

func (m multiRecorder) Record(event QueryEvent) {
	for _, r := range m {
		r.Record(event)
	}
}

// Tee returns a Recorder that forwards each event to every non-nil recorder.
func Tee(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
