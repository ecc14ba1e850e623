// Conversation Viewer - live view of analyzed conversation turns.
// Consumes the turn and conversation topics and pushes them to browsers
// over WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// ViewerEvent is what browsers receive. Turn events carry the turn fields;
// conversation events carry the header summary.
type ViewerEvent struct {
	EventType      string  `json:"eventType"`
	RunID          string  `json:"runId"`
	JobName        string  `json:"jobName"`
	SegmentID      string  `json:"segmentId,omitempty"`
	Speaker        string  `json:"speaker,omitempty"`
	StartTime      float64 `json:"startTime,omitempty"`
	EndTime        float64 `json:"endTime,omitempty"`
	Text           string  `json:"text,omitempty"`
	Sentiment      string  `json:"sentiment,omitempty"`
	SentimentScore float64 `json:"sentimentScore,omitempty"`
	EntityCount    int     `json:"entityCount,omitempty"`
	Turns          int     `json:"turns,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// conversationProcessed is the subset of the conversation event the viewer
// shows.
type conversationProcessed struct {
	EventType string `json:"eventType"`
	RunID     string `json:"runId"`
	JobName   string `json:"jobName"`
	Timestamp int64  `json:"timestamp"`
	Record    struct {
		ConversationAnalytics struct {
			Duration float64 `json:"Duration"`
		} `json:"ConversationAnalytics"`
		SpeechSegments []json.RawMessage `json:"SpeechSegments"`
	} `json:"record"`
}

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan ViewerEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan ViewerEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Printf("Client connected. Total: %d", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("Client disconnected. Total: %d", len(h.clients))

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev only
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.register <- conn

		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}

// decode turns a Kafka message into a viewer event based on its eventType
// header, falling back to the body.
func decode(msg kafka.Message) (ViewerEvent, bool) {
	eventType := ""
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			eventType = string(h.Value)
		}
	}

	if eventType == "conversation.processed" {
		var c conversationProcessed
		if err := json.Unmarshal(msg.Value, &c); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			return ViewerEvent{}, false
		}
		return ViewerEvent{
			EventType: c.EventType,
			RunID:     c.RunID,
			JobName:   c.JobName,
			Turns:     len(c.Record.SpeechSegments),
			Duration:  c.Record.ConversationAnalytics.Duration,
			Timestamp: c.Timestamp,
		}, true
	}

	var event ViewerEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("JSON unmarshal error: %v", err)
		return ViewerEvent{}, false
	}
	return event, true
}

func consumeKafka(ctx context.Context, hub *Hub, brokers, topic string) {
	// Partition reader without a consumer group, so every viewer sees everything
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-1*time.Hour)); err != nil {
		log.Printf("Seek error on %s: %v", topic, err)
	}

	log.Printf("Consuming from Kafka topic: %s partition 0 (last hour)", topic)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		event, ok := decode(msg)
		if !ok {
			continue
		}
		log.Printf("Received %s for %s: %s", event.EventType, event.JobName, truncate(event.Text, 40))
		hub.broadcast <- event
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicTurns := flag.String("topic-turns", "conversation.turn.analyzed", "Analyzed turn topic")
	topicConversations := flag.String("topic-conversations", "conversation.processed", "Processed conversation topic")
	flag.Parse()

	hub := newHub()
	go hub.run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumeKafka(ctx, hub, *brokers, *topicTurns)
	go consumeKafka(ctx, hub, *brokers, *topicConversations)

	staticFS, _ := fs.Sub(staticFiles, "static")
	http.Handle("/", http.FileServer(http.FS(staticFS)))
	http.HandleFunc("/ws", wsHandler(hub))

	log.Printf("Conversation Viewer starting on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicTurns, *topicConversations)

	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
