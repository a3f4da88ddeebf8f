package port

import "time"

// Sink 终端输出
type Sink interface {
	// WriteSnapshot 追加一行带时间戳的记录
	WriteSnapshot(ts time.Time, line string) error
	NewLine() error
}
