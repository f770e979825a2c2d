package kadence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the core's counters to a prometheus registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	messagesSent    *prometheus.CounterVec
	lookups         prometheus.Counter
	storesConfirmed prometheus.Counter
	contactsAdded   prometheus.Counter
	contactsDeleted prometheus.Counter
	storageOps      *prometheus.CounterVec
}

// NewMetrics builds the collector set, registered against reg. Passing a
// nil registerer yields unregistered collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "messages_sent_total",
			Help:      "Outbound RPCs dispatched to the transport, by method.",
		}, []string{"method"}),
		lookups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "lookups_total",
			Help:      "Iterative lookups started.",
		}),
		storesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "stores_confirmed_total",
			Help:      "STORE RPCs confirmed by remote nodes.",
		}),
		contactsAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "contacts_added_total",
			Help:      "Contacts inserted into or touched in the routing table.",
		}),
		contactsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "contacts_deleted_total",
			Help:      "Contacts evicted from the routing table.",
		}),
		storageOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kadence",
			Name:      "storage_ops_total",
			Help:      "Storage adapter operations, by op.",
		}, []string{"op"}),
	}
}

func (m *Metrics) incMessage(method Method) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(string(method)).Inc()
}

func (m *Metrics) incLookups() {
	if m == nil {
		return
	}
	m.lookups.Inc()
}

func (m *Metrics) addStoresConfirmed(n int) {
	if m == nil {
		return
	}
	m.storesConfirmed.Add(float64(n))
}

func (m *Metrics) incContactsAdded() {
	if m == nil {
		return
	}
	m.contactsAdded.Inc()
}

func (m *Metrics) incContactsDeleted() {
	if m == nil {
		return
	}
	m.contactsDeleted.Inc()
}

func (m *Metrics) incStorageOp(op string) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(op).Inc()
}
