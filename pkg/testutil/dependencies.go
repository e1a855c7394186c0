package testutil

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaAddr returns the broker used by integration tests, overridable with
// LIMITBOOK_TEST_KAFKA
func KafkaAddr() string {
	if addr := os.Getenv("LIMITBOOK_TEST_KAFKA"); addr != "" {
		return addr
	}
	return "localhost:9092"
}

// SkipIfKafkaUnavailable skips the test if Kafka is unavailable on the specified address
func SkipIfKafkaUnavailable(t *testing.T, kafkaAddr string) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Kafka test in short mode")
	}

	conn, err := net.DialTimeout("tcp", kafkaAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", kafkaAddr, err)
		return
	}
	_ = conn.Close()

	// A listening port is not enough; ask the broker for its partitions
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	kconn, err := kafka.DialContext(ctx, "tcp", kafkaAddr)
	if err != nil {
		t.Skipf("Skipping test: Kafka at %s is not responding - %v", kafkaAddr, err)
		return
	}
	defer kconn.Close()
	_ = kconn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := kconn.ReadPartitions(); err != nil && !errors.Is(err, io.EOF) {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", kafkaAddr, err)
	}
}
