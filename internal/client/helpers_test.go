package client_test

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mutex sync.Mutex
	logs  []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *recordingLogger) record(level, msg string, fields map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.logs = append(l.logs, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {
	l.record("debug", msg, fields)
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {
	l.record("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.record("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.record("error", msg, fields)
}

func (l *recordingLogger) entries(level string) []logEntry {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var matched []logEntry

	for _, entry := range l.logs {
		if entry.level == level {
			matched = append(matched, entry)
		}
	}

	return matched
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// writeJSON writes body with the given status.
func writeJSON(writer http.ResponseWriter, status int, body interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

// withMeta adds a meta object carrying serverTime offset by skew seconds.
func withMeta(body map[string]interface{}, skew float64) map[string]interface{} {
	body["meta"] = map[string]interface{}{
		"apiVersion": "1.9.0",
		"serverTime": nowSeconds() + skew,
	}

	return body
}

// hitCounter counts requests served per path.
type hitCounter struct {
	mutex sync.Mutex
	hits  map[string]int
	total atomic.Int32
}

func newHitCounter() *hitCounter {
	return &hitCounter{hits: make(map[string]int)}
}

func (h *hitCounter) add(path string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.hits[path]++
	h.total.Add(1)
}

func (h *hitCounter) count(path string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.hits[path]
}
