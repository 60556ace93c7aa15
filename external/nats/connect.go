package nats

import (
	natsgo "github.com/nats-io/nats.go"
)

// Connect opens a connection to natsURL, falling back to the default local
// server when the URL is empty.
func Connect(natsURL string, opts ...natsgo.Option) (*natsgo.Conn, error) {
	if natsURL == "" {
		natsURL = natsgo.DefaultURL
	}
	opts = append([]natsgo.Option{
		natsgo.Name("eventsourcing-external-producer"),
		natsgo.MaxReconnects(3),
	}, opts...)
	return natsgo.Connect(natsURL, opts...)
}
