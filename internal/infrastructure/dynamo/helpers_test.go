package dynamo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestStrKey(t *testing.T) {
	key := strKey("identity", "a@x.com")
	s, ok := key["identity"].(*types.AttributeValueMemberS)
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", s.Value)
}

func TestTTLSeconds_RoundsUp(t *testing.T) {
	whole := time.Unix(1700000000, 0)
	assert.Equal(t, int64(1700000000), ttlSeconds(whole))
	assert.Equal(t, int64(1700000001), ttlSeconds(whole.Add(time.Millisecond)))
}

func TestIsConditionFailed(t *testing.T) {
	wrapped := fmt.Errorf("operation error: %w", &types.ConditionalCheckFailedException{})
	assert.True(t, isConditionFailed(wrapped))
	assert.False(t, isConditionFailed(errors.New("throttled")))
	assert.False(t, isConditionFailed(nil))
}
