package metrics

import "time"

type NoopCollector struct{}

var (
	_ ConsumerMetrics = NoopCollector{}
	_ ProducerMetrics = NoopCollector{}
)

func (NoopCollector) InterestSent()              {}
func (NoopCollector) DataReceived(time.Duration) {}
func (NoopCollector) NackReceived(string)        {}
func (NoopCollector) Timeout()                   {}
func (NoopCollector) Retransmitted()             {}
func (NoopCollector) GaveUp()                    {}
func (NoopCollector) InterestReceived()          {}
func (NoopCollector) DataSent()                  {}
func (NoopCollector) NackSent(string)            {}
func (NoopCollector) CacheHit()                  {}
