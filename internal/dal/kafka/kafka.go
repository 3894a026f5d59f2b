package kafka

import (
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/viper"
)

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}

	return &Client{Brokers: brokers}
}

// MustNewClient reads kafka.brokers. An empty list is a configuration error.
func MustNewClient() *Client {
	c := NewClient(viper.GetString("kafka.brokers"))
	if !c.Enabled() {
		panic("kafka.brokers is empty")
	}
	slog.Info("Kafka configured", "brokers", c.Brokers)

	return c
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a writer without a fixed topic; every message names its own.
// Keys hash to partitions so events of one order stay ordered.
func (c *Client) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}
