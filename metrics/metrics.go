// Package metrics exposes Prometheus collectors for the consumer and producer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ndn"

const (
	subsystemConsumer = "consumer"
	subsystemProducer = "producer"
)

type ConsumerMetrics interface {
	InterestSent()
	DataReceived(rtt time.Duration)
	NackReceived(reason string)
	Timeout()
	Retransmitted()
	GaveUp()
}

type ProducerMetrics interface {
	InterestReceived()
	DataSent()
	NackSent(reason string)
	CacheHit()
}

type ConsumerCollector struct {
	interestsSent   prometheus.Counter
	dataReceived    prometheus.Counter
	nacksReceived   *prometheus.CounterVec
	timeouts        prometheus.Counter
	retransmissions prometheus.Counter
	giveups         prometheus.Counter
	rtt             prometheus.Histogram
}

var _ ConsumerMetrics = (*ConsumerCollector)(nil)

func NewConsumerCollector(reg prometheus.Registerer) *ConsumerCollector {
	c := &ConsumerCollector{
		interestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "interests_sent_total",
			Help:      "number of interests expressed, retransmissions included",
		}),
		dataReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "data_received_total",
			Help:      "number of interests satisfied by data",
		}),
		nacksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "nacks_received_total",
			Help:      "number of network nacks received, by reason",
		}, []string{"reason"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "timeouts_total",
			Help:      "number of interests whose lifetime expired",
		}),
		retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "retransmissions_total",
			Help:      "number of interests re-expressed after a timeout",
		}),
		giveups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "giveups_total",
			Help:      "number of interests abandoned after the retry budget ran out",
		}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemConsumer,
			Name:      "rtt_seconds",
			Help:      "time from expressing an interest to receiving its data",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	reg.MustRegister(
		c.interestsSent,
		c.dataReceived,
		c.nacksReceived,
		c.timeouts,
		c.retransmissions,
		c.giveups,
		c.rtt,
	)
	return c
}

func (c *ConsumerCollector) InterestSent() {
	c.interestsSent.Inc()
}

func (c *ConsumerCollector) DataReceived(rtt time.Duration) {
	c.dataReceived.Inc()
	c.rtt.Observe(rtt.Seconds())
}

func (c *ConsumerCollector) NackReceived(reason string) {
	c.nacksReceived.WithLabelValues(reason).Inc()
}

func (c *ConsumerCollector) Timeout() {
	c.timeouts.Inc()
}

func (c *ConsumerCollector) Retransmitted() {
	c.retransmissions.Inc()
}

func (c *ConsumerCollector) GaveUp() {
	c.giveups.Inc()
}

type ProducerCollector struct {
	interestsReceived prometheus.Counter
	dataSent          prometheus.Counter
	nacksSent         *prometheus.CounterVec
	cacheHits         prometheus.Counter
}

var _ ProducerMetrics = (*ProducerCollector)(nil)

func NewProducerCollector(reg prometheus.Registerer) *ProducerCollector {
	c := &ProducerCollector{
		interestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProducer,
			Name:      "interests_received_total",
			Help:      "number of interests delivered to the producer",
		}),
		dataSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProducer,
			Name:      "data_sent_total",
			Help:      "number of data packets sent",
		}),
		nacksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProducer,
			Name:      "nacks_sent_total",
			Help:      "number of nacks sent, by reason",
		}, []string{"reason"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProducer,
			Name:      "cache_hits_total",
			Help:      "number of interests answered from the content store",
		}),
	}
	reg.MustRegister(c.interestsReceived, c.dataSent, c.nacksSent, c.cacheHits)
	return c
}

func (c *ProducerCollector) InterestReceived() {
	c.interestsReceived.Inc()
}

func (c *ProducerCollector) DataSent() {
	c.dataSent.Inc()
}

func (c *ProducerCollector) NackSent(reason string) {
	c.nacksSent.WithLabelValues(reason).Inc()
}

func (c *ProducerCollector) CacheHit() {
	c.cacheHits.Inc()
}
