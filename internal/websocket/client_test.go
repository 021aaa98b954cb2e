package websocket

import (
	"testing"
	"time"
)

func TestClient_QueuePong(t *testing.T) {
	c := &Client{
		send: make(chan []byte, 8),
		pong: make(chan struct{}, 1),
	}

	c.queuePong()

	select {
	case <-c.pong:
		// OK - сигнал поставлен
	default:
		t.Fatal("pong signal was not queued")
	}
}

func TestClient_QueuePongCoalesces(t *testing.T) {
	c := &Client{
		send: make(chan []byte, 8),
		pong: make(chan struct{}, 1),
	}

	// Повторные ping до ответа сливаются в один сигнал и не блокируют
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.queuePong()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queuePong blocked on full pong channel")
	}

	<-c.pong
	select {
	case <-c.pong:
		t.Error("expected a single coalesced pong signal")
	default:
	}
}

func TestClient_PingAfterSlowDrop(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	c := testClient(hub, 1)
	waitForClients(t, hub, 1)

	// Переполняем буфер: второй broadcast снимает сессию,
	// hub закрывает ее канал send
	hub.Broadcast(map[string]int{"seq": 1})
	hub.Broadcast(map[string]int{"seq": 2})
	waitForClients(t, hub, 0)

	// Прикладной ping с еще живого соединения не должен ронять
	// процесс: сигнал идет в собственный канал сессии, а не в
	// закрытый send
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("ping after drop panicked: %v", r)
		}
	}()
	c.queuePong()
	c.queuePong()

	select {
	case <-c.pong:
	default:
		t.Error("pong signal was not queued after drop")
	}
}
