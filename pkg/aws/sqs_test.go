package aws_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSQS struct {
	mu         sync.Mutex
	batches    [][]types.Message
	receiveErr error
	deleted    []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.batches) == 0 {
		return &sqs.ReceiveMessageOutput{}, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func message(id, body string) types.Message {
	return types.Message{MessageId: &id, Body: &body, ReceiptHandle: stringPtr("rh-" + id)}
}

func stringPtr(s string) *string { return &s }

func TestSQSConsumer_PollOnce_DeletesOnlyAcceptedMessages(t *testing.T) {
	client := &fakeSQS{batches: [][]types.Message{{
		message("1", `{"payment_id":"a","status":"completed"}`),
		message("2", "retry-me"),
		{MessageId: stringPtr("3")},
	}}}
	consumer := aws_pkg.NewSQSConsumerWithClient(client, "https://sqs.local/queue", zap.NewNop())

	var seen []string
	err := consumer.PollOnce(context.Background(), func(_ context.Context, body string) error {
		seen = append(seen, body)
		if body == "retry-me" {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}

func TestSQSConsumer_PollOnce_ReceiveError(t *testing.T) {
	client := &fakeSQS{receiveErr: errors.New("throttled")}
	consumer := aws_pkg.NewSQSConsumerWithClient(client, "https://sqs.local/queue", zap.NewNop())

	err := consumer.PollOnce(context.Background(), func(context.Context, string) error { return nil })
	assert.ErrorContains(t, err, "throttled")
}

func TestSQSConsumer_StartPolling_StopsOnCancel(t *testing.T) {
	client := &fakeSQS{batches: [][]types.Message{{message("1", "ok")}}}
	consumer := aws_pkg.NewSQSConsumerWithClient(client, "https://sqs.local/queue", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- consumer.StartPolling(ctx, func(context.Context, string) error {
			close(handled)
			return nil
		})
	}()

	<-handled
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}
