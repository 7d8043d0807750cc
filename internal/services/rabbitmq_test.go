package services

import (
	"context"
	"testing"
)

func newDetachedPublisher() *RabbitMQPublisher {
	return &RabbitMQPublisher{exchangeName: "test.events", closed: make(chan struct{})}
}

func TestRabbitMQPublisher_CloseTwice(t *testing.T) {
	p := newDetachedPublisher()

	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !p.isClosed() {
		t.Error("publisher not marked closed")
	}
}

func TestRabbitMQPublisher_InstallAfterClose(t *testing.T) {
	p := newDetachedPublisher()

	if !p.install(nil, nil) {
		t.Fatal("install before Close should succeed")
	}
	p.Close()

	if p.install(nil, nil) {
		t.Error("install after Close should be refused")
	}
}

func TestRabbitMQPublisher_RedialStopsWhenClosed(t *testing.T) {
	p := newDetachedPublisher()
	p.Close()

	if p.redial() {
		t.Error("redial after Close should give up")
	}
}

func TestRabbitMQPublisher_HealthCheckWithoutConnection(t *testing.T) {
	p := newDetachedPublisher()

	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck with no connection should fail")
	}
}
