package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKafkaAddr(t *testing.T) {
	t.Setenv("LIMITBOOK_TEST_KAFKA", "")
	assert.Equal(t, "localhost:9092", KafkaAddr())

	t.Setenv("LIMITBOOK_TEST_KAFKA", "broker:29092")
	assert.Equal(t, "broker:29092", KafkaAddr())
}
