package monitor

import (
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Reporter 把快照与决策写到终端
type Reporter struct {
	sink port.Sink
	fmt  *Formatter
}

func NewReporter(sink port.Sink, color bool) *Reporter {
	return &Reporter{sink: sink, fmt: NewFormatter(color)}
}

func (r *Reporter) Snapshot(ts time.Time, rec *model.FundingRecord) {
	if rec == nil {
		return
	}
	if err := r.sink.WriteSnapshot(ts, r.fmt.RenderSnapshot(rec)); err != nil {
		log.Warn().Err(err).Msg("write snapshot failed")
	}
}

func (r *Reporter) Decision(ts time.Time, d model.ArbitrageDecision) {
	if err := r.sink.WriteSnapshot(ts, r.fmt.RenderDecision(d)); err != nil {
		log.Warn().Err(err).Msg("write decision failed")
	}
}
