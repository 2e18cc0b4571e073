package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestSendSMS_Transactional(t *testing.T) {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr := in.MessageAttributes["AWS.SNS.SMS.SMSType"]
		return *in.PhoneNumber == "+14155550123" && *in.Message == "hi" && *attr.StringValue == "Transactional"
	})).Return(&sns.PublishOutput{}, nil)

	err := (&sender{client: p}).SendSMS(context.Background(), "+14155550123", "hi")

	assert.NoError(t, err)
	p.AssertExpectations(t)
}

func TestSendSMS_PropagatesError(t *testing.T) {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("opted out"))

	err := (&sender{client: p}).SendSMS(context.Background(), "+14155550123", "hi")
	assert.ErrorContains(t, err, "opted out")
}
