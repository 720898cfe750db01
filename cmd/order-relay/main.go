package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/creator-xp/internal/webhook"
)

// order is the subset of an orders/paid payload the service reads
type order struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// buildPayloads returns count synthetic order bodies cycling through emails
func buildPayloads(emails []string, count int, newID func() string) ([][]byte, error) {
	if len(emails) == 0 {
		return nil, fmt.Errorf("no emails given")
	}
	payloads := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		data, err := json.Marshal(order{ID: newID(), Email: emails[i%len(emails)]})
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

// newMessage wraps a raw body as a signed relay record
func newMessage(topic string, body []byte, secret, deliveryID string) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(deliveryID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte(webhook.SignatureHeader), Value: []byte(webhook.Sign(body, secret))},
			{Key: []byte(webhook.IDHeader), Value: []byte(deliveryID)},
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "orders-paid", "Kafka topic")
	secret := flag.String("secret", "", "Webhook secret used to sign payloads (default $SHOPIFY_WEBHOOK_SECRET)")
	emails := flag.String("emails", "", "Purchaser emails to cycle through (comma-separated)")
	count := flag.Int("count", 10, "Number of synthetic orders to send")
	file := flag.String("file", "", "Relay this JSON payload file verbatim instead of synthetic orders")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("SHOPIFY_WEBHOOK_SECRET")
	}
	if *secret == "" {
		log.Fatal("a signing secret is required (-secret or SHOPIFY_WEBHOOK_SECRET)")
	}

	var payloads [][]byte
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("Failed to read payload file: %v", err)
		}
		payloads = [][]byte{data}
	} else {
		var err error
		payloads, err = buildPayloads(splitList(*emails), *count, uuid.NewString)
		if err != nil {
			log.Fatalf("Failed to build payloads: %v", err)
		}
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Order relay")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:   %s\n", *brokers)
	fmt.Printf("  Topic:     %s\n", *topic)
	fmt.Printf("  Payloads:  %d\n", len(payloads))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(splitList(*brokers), config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

send:
	for _, body := range payloads {
		select {
		case producer.Input() <- newMessage(*topic, body, *secret, uuid.NewString()):
		case <-sigChan:
			fmt.Println("\nInterrupted, flushing...")
			break send
		}
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	if atomic.LoadInt64(&errorCount) > 0 {
		os.Exit(1)
	}
}
