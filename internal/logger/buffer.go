package logger

import (
	"sync"
	"time"
)

// LogEntry 日志条目
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogBuffer 内存日志环形缓冲区
type LogBuffer struct {
	entries []LogEntry
	next    int
	full    bool
	mu      sync.RWMutex
}

var globalBuffer *LogBuffer

// InitBuffer 初始化日志缓冲区
func InitBuffer(size int) {
	globalBuffer = &LogBuffer{
		entries: make([]LogEntry, size),
	}
}

// GetBuffer 获取全局缓冲区
func GetBuffer() *LogBuffer {
	return globalBuffer
}

// Append 添加日志到缓冲区，写满后覆盖最旧的条目
func (lb *LogBuffer) Append(level, message string) {
	if lb == nil {
		return
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.next] = LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
	lb.next++
	if lb.next == len(lb.entries) {
		lb.next = 0
		lb.full = true
	}
}

// Recent 获取最近的N条日志（按时间从旧到新）
func (lb *LogBuffer) Recent(n int) []LogEntry {
	if lb == nil {
		return []LogEntry{}
	}

	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var ordered []LogEntry
	if lb.full {
		ordered = append(ordered, lb.entries[lb.next:]...)
	}
	ordered = append(ordered, lb.entries[:lb.next]...)

	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Clear 清空日志缓冲区
func (lb *LogBuffer) Clear() {
	if lb == nil {
		return
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = make([]LogEntry, len(lb.entries))
	lb.next = 0
	lb.full = false
}
