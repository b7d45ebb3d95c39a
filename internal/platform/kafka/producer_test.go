package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil, "location-proof-audit")
	require.Error(t, err)
}

func TestNewProducerIsLazy(t *testing.T) {
	p, err := NewProducer([]string{"127.0.0.1:1"}, "location-proof-audit")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "location-proof-audit", p.Topic())
}
