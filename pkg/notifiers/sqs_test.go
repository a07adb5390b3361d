package notifiers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-456")}, nil
}

func TestSQSNotifierSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	notifier := &sqsNotifier{
		id:       "sqs-1",
		typ:      TypeSQS,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123/listings",
		client:   client,
		log:      noopLogger{},
	}

	evt := NewListingEvent("wheel-loaders", domain.Machine{
		SiteType:    "mascus",
		SearchLabel: "Wheel Loaders",
		UniqueKey:   "volvo-l60h",
	})
	if err := notifier.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs.us-east-1.amazonaws.com/123/listings" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["site_id"]
	if !ok || attr.StringValue == nil || aws.ToString(attr.StringValue) != "wheel-loaders" {
		t.Fatalf("site_id attribute missing or wrong: %#v", attr)
	}
	if client.input.MessageBody == nil || !strings.Contains(aws.ToString(client.input.MessageBody), `"unique_key":"volvo-l60h"`) {
		t.Fatalf("MessageBody missing machine payload: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSNotifierError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	notifier := &sqsNotifier{
		id:       "sqs-1",
		typ:      TypeSQS,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123/listings",
		client:   client,
		log:      noopLogger{},
	}

	if err := notifier.Notify(context.Background(), Event{SiteID: "s1"}); err == nil {
		t.Fatalf("expected error from Notify")
	}
}
