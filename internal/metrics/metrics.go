package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-can-dump/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	RxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frames_rx_total",
		Help: "Total CAN frames produced by the frame source, by transport.",
	}, []string{"transport"})
	SkippedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frames_skipped_total",
		Help: "Frames dropped from rendering by a recoverable decode failure, by reason.",
	}, []string{"reason"})
	MaskedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_masked_total",
		Help: "Frames whose message id is masked from rendering.",
	})
	UnknownFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_unknown_total",
		Help: "Frames with a message id missing from the registry.",
	})
	RenderedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_rendered_total",
		Help: "Console lines rendered.",
	})
	RecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_written_total",
		Help: "Records appended to the record log.",
	})
	LinesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lines_published_total",
		Help: "Rendered lines delivered to the MQTT broker.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Transport label values.
const (
	TransportSerial    = "serial"
	TransportSocketCAN = "socketcan"
)

// Skip reason label values.
const (
	SkipCOBS   = "cobs"
	SkipLength = "length"
	SkipUnpack = "unpack"
	SkipRange  = "range"
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSerialRead    = "serial_read"
	ErrSocketCANRead = "socketcan_read"
	ErrRecordWrite   = "record_write"
	ErrConsoleWrite  = "console_write"
	ErrMQTTPublish   = "mqtt_publish"
	ErrMQTTOverflow  = "mqtt_overflow"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localSerialRx    uint64
	localSocketCANRx uint64
	localSkipped     uint64
	localMasked      uint64
	localUnknown     uint64
	localRendered    uint64
	localRecords     uint64
	localPublished   uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	SerialRx    uint64
	SocketCANRx uint64
	Skipped     uint64 // sum across skip reasons
	Masked      uint64
	Unknown     uint64
	Rendered    uint64
	Records     uint64
	Published   uint64
	Errors      uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		SerialRx:    atomic.LoadUint64(&localSerialRx),
		SocketCANRx: atomic.LoadUint64(&localSocketCANRx),
		Skipped:     atomic.LoadUint64(&localSkipped),
		Masked:      atomic.LoadUint64(&localMasked),
		Unknown:     atomic.LoadUint64(&localUnknown),
		Rendered:    atomic.LoadUint64(&localRendered),
		Records:     atomic.LoadUint64(&localRecords),
		Published:   atomic.LoadUint64(&localPublished),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

// IncRx counts one frame received on the given transport.
func IncRx(transport string) {
	RxFrames.WithLabelValues(transport).Inc()
	switch transport {
	case TransportSerial:
		atomic.AddUint64(&localSerialRx, 1)
	case TransportSocketCAN:
		atomic.AddUint64(&localSocketCANRx, 1)
	}
}

func IncSkipped(reason string) {
	SkippedFrames.WithLabelValues(reason).Inc()
	atomic.AddUint64(&localSkipped, 1)
}

func IncMasked() {
	MaskedFrames.Inc()
	atomic.AddUint64(&localMasked, 1)
}

func IncUnknown() {
	UnknownFrames.Inc()
	atomic.AddUint64(&localUnknown, 1)
}

func IncRendered() {
	RenderedFrames.Inc()
	atomic.AddUint64(&localRendered, 1)
}

func IncRecords() {
	RecordsWritten.Inc()
	atomic.AddUint64(&localRecords, 1)
}

func IncPublished() {
	LinesPublished.Inc()
	atomic.AddUint64(&localPublished, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register label series so dashboards see zeroes before the first event.
	for _, lbl := range []string{
		ErrSerialRead, ErrSocketCANRead, ErrRecordWrite,
		ErrConsoleWrite, ErrMQTTPublish, ErrMQTTOverflow,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, r := range []string{SkipCOBS, SkipLength, SkipUnpack, SkipRange} {
		SkippedFrames.WithLabelValues(r).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
