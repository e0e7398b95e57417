package stats

import (
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultLogLines = 1000

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Line      string    `json:"line"`
}

// LogBuffer is a logrus hook that remembers the most recent entries.
type LogBuffer struct {
	ring *Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{ring: NewRing[LogEntry](size)}
}

func (b *LogBuffer) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire records the entry. Source is taken from the "component" field when set.
func (b *LogBuffer) Fire(e *logrus.Entry) error {
	source := "daemon"
	if c, ok := e.Data["component"].(string); ok && c != "" {
		source = c
	}
	b.ring.Add(LogEntry{
		Timestamp: e.Time,
		Level:     e.Level.String(),
		Source:    source,
		Line:      e.Message,
	})
	return nil
}

func (b *LogBuffer) GetAll() []LogEntry {
	return b.ring.All()
}

func (b *LogBuffer) GetRecent(n int) []LogEntry {
	return b.ring.Recent(n)
}
