package remregs

import (
	"sync/atomic"
)

// LinkMetrics contains atomic metrics for a register link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type LinkMetrics struct {
	// OpCount indicates the number of register operations put on the wire.
	OpCount atomic.Uint64
	// AckCount indicates the number of operations acknowledged by the peer.
	AckCount atomic.Uint64
	// RejectCount indicates the number of operations answered with NAK or an unexpected byte.
	RejectCount atomic.Uint64
	// ResponseTimeoutCount indicates the number of operations without a response byte.
	ResponseTimeoutCount atomic.Uint64
	// PayloadTimeoutCount indicates the number of read payloads cut short by a timeout.
	PayloadTimeoutCount atomic.Uint64

	// SyncCount indicates the number of handshakes attempted.
	SyncCount atomic.Uint64
	// SyncFailCount indicates the number of handshakes that timed out.
	SyncFailCount atomic.Uint64

	// BytesSent indicates the number of bytes handed to the transmitter.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes queued by the byte-arrival hook.
	BytesRecv atomic.Uint64
	// FramingErrCount indicates the number of received bytes discarded for framing errors.
	FramingErrCount atomic.Uint64
	// OverrunCount indicates the number of receiver overruns cleared.
	OverrunCount atomic.Uint64
	// OverwriteCount indicates the number of unread bytes lost to ring overflow.
	OverwriteCount atomic.Uint64
}

func (m *LinkMetrics) incOpCount() {
	m.OpCount.Add(1)
}

func (m *LinkMetrics) incAckCount() {
	m.AckCount.Add(1)
}

func (m *LinkMetrics) incRejectCount() {
	m.RejectCount.Add(1)
}

func (m *LinkMetrics) incResponseTimeoutCount() {
	m.ResponseTimeoutCount.Add(1)
}

func (m *LinkMetrics) incPayloadTimeoutCount() {
	m.PayloadTimeoutCount.Add(1)
}

func (m *LinkMetrics) incSyncCount() {
	m.SyncCount.Add(1)
}

func (m *LinkMetrics) incSyncFailCount() {
	m.SyncFailCount.Add(1)
}

func (m *LinkMetrics) incBytesSent() {
	m.BytesSent.Add(1)
}

func (m *LinkMetrics) incBytesRecv() {
	m.BytesRecv.Add(1)
}

func (m *LinkMetrics) incFramingErrCount() {
	m.FramingErrCount.Add(1)
}

func (m *LinkMetrics) incOverrunCount() {
	m.OverrunCount.Add(1)
}

// Snapshot returns a plain copy of the counters, suitable for encoding.
func (m *LinkMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		OpCount:              m.OpCount.Load(),
		AckCount:             m.AckCount.Load(),
		RejectCount:          m.RejectCount.Load(),
		ResponseTimeoutCount: m.ResponseTimeoutCount.Load(),
		PayloadTimeoutCount:  m.PayloadTimeoutCount.Load(),
		SyncCount:            m.SyncCount.Load(),
		SyncFailCount:        m.SyncFailCount.Load(),
		BytesSent:            m.BytesSent.Load(),
		BytesRecv:            m.BytesRecv.Load(),
		FramingErrCount:      m.FramingErrCount.Load(),
		OverrunCount:         m.OverrunCount.Load(),
		OverwriteCount:       m.OverwriteCount.Load(),
	}
}

// MetricsSnapshot is a point-in-time copy of LinkMetrics.
type MetricsSnapshot struct {
	OpCount              uint64 `json:"op_count" yaml:"op_count"`
	AckCount             uint64 `json:"ack_count" yaml:"ack_count"`
	RejectCount          uint64 `json:"reject_count" yaml:"reject_count"`
	ResponseTimeoutCount uint64 `json:"response_timeout_count" yaml:"response_timeout_count"`
	PayloadTimeoutCount  uint64 `json:"payload_timeout_count" yaml:"payload_timeout_count"`
	SyncCount            uint64 `json:"sync_count" yaml:"sync_count"`
	SyncFailCount        uint64 `json:"sync_fail_count" yaml:"sync_fail_count"`
	BytesSent            uint64 `json:"bytes_sent" yaml:"bytes_sent"`
	BytesRecv            uint64 `json:"bytes_recv" yaml:"bytes_recv"`
	FramingErrCount      uint64 `json:"framing_err_count" yaml:"framing_err_count"`
	OverrunCount         uint64 `json:"overrun_count" yaml:"overrun_count"`
	OverwriteCount       uint64 `json:"overwrite_count" yaml:"overwrite_count"`
}
