package console

import (
	"fmt"
	"time"

	"fundarb/internal/application/port"
)

type Sink struct{}

func NewSink() port.Sink { return &Sink{} }

// WriteSnapshot 一行一条，带本地时间
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	_, err := fmt.Printf("%s %s\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

func (s *Sink) NewLine() error {
	_, err := fmt.Print("\n")
	return err
}
