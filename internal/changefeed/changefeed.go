// Package changefeed publishes durably committed writes to a Kafka topic so
// downstream consumers can follow bulk edits. Emission is asynchronous and
// best-effort; delivery problems are logged, never fed back into the job.
package changefeed

import (
	"fmt"

	"github.com/IBM/sarama"

	"kvedit/internal/logging"
	"kvedit/internal/store"
)

type Config struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	Acks    int16    `koanf:"required_acks"` // 0,1,-1
}

type Emitter struct {
	cfg  Config
	p    sarama.AsyncProducer
	done chan struct{}
}

// New dials the brokers and starts draining producer errors.
func New(cfg Config) (*Emitter, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("changefeed: brokers and topic are required")
	}
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("changefeed: %w", err)
	}
	return newWithProducer(cfg, p), nil
}

func newWithProducer(cfg Config, p sarama.AsyncProducer) *Emitter {
	e := &Emitter{cfg: cfg, p: p, done: make(chan struct{})}
	go func() {
		defer close(e.done)
		for perr := range p.Errors() {
			logging.L().Error("changefeed delivery failed", "topic", cfg.Topic, "err", perr.Err)
		}
	}()
	return e
}

// Emit publishes one committed batch, one message per write. The column
// family travels as a header so one topic can carry several keyspaces.
func (e *Emitter) Emit(cf string, writes []store.Write) {
	for _, w := range writes {
		e.p.Input() <- &sarama.ProducerMessage{
			Topic: e.cfg.Topic,
			Key:   sarama.ByteEncoder(w.Key),
			Value: sarama.ByteEncoder(w.Value),
			Headers: []sarama.RecordHeader{
				{Key: []byte("column_family"), Value: []byte(cf)},
			},
		}
	}
}

func (e *Emitter) Close() error {
	err := e.p.Close()
	<-e.done
	return err
}
