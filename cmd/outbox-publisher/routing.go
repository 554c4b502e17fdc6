package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// Resume clears the pause Pub/Sub puts on an ordering key after a failed publish.
	Resume(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type routedPublisher interface {
	publisher
	Stop()
}

// topicRouter opens one ordered publisher per topic on first use and keeps it
// for the life of the process.
type topicRouter struct {
	mu     sync.Mutex
	open   func(topic string) routedPublisher
	routes map[string]routedPublisher
}

func newTopicRouter(open func(topic string) routedPublisher) *topicRouter {
	return &topicRouter{open: open, routes: map[string]routedPublisher{}}
}

// gcpRoutes opens publishers from the Pub/Sub client with message ordering on.
func gcpRoutes(client pubSubClient) func(topic string) routedPublisher {
	return func(topic string) routedPublisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		return &gcpPublisher{Publisher: p}
	}
}

// Route returns nil when the topic cannot be opened; nothing is cached then.
func (r *topicRouter) Route(topic string) publisher {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.routes[topic]; ok {
		return p
	}
	p := r.open(topic)
	if p == nil {
		return nil
	}
	r.routes[topic] = p
	return p
}

// Stop flushes and closes every opened publisher.
func (r *topicRouter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, p := range r.routes {
		p.Stop()
		delete(r.routes, topic)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

func (p *gcpPublisher) Resume(orderingKey string) {
	if orderingKey != "" {
		p.Publisher.ResumePublish(orderingKey)
	}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
