/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/IBM/sarama"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	eventhub "github.com/Azure/azure-event-hubs-go/v3"

	"github.com/sboxmgr/core/pctx"
)

// S3Fetcher retrieves a subscription body stored as a single S3 object.
// This is a supplementary backend beyond the required http/file/api-token
// set.
type S3Fetcher struct {
	sess   *session.Session
	bucket string
	opts   options
}

// NewS3Fetcher builds an S3Fetcher against bucket using the default AWS
// credential chain.
func NewS3Fetcher(bucket, region string, opts ...Option) (*S3Fetcher, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return &S3Fetcher{sess: sess, bucket: bucket, opts: newOptions(opts)}, nil
}

func (f *S3Fetcher) Name() string { return "s3" }

// Fetch treats loc as the S3 object key within f.bucket.
func (f *S3Fetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	svc := s3.New(f.sess)
	out, err := svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(loc),
	})
	if err != nil {
		return Result{}, err
	}
	defer out.Body.Close()

	limit := f.opts.maxBodySize
	body, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		return Result{}, err
	}
	if int64(len(body)) > limit {
		return Result{Body: body[:limit], Truncated: true}, ErrOversize
	}
	return Result{Body: body}, nil
}

// KafkaFetcher retrieves the newest message on a single partition of a
// topic, treating that message's value as the subscription body. Useful
// when a profile's source is maintained by a separate publisher process
// rather than served over HTTP.
type KafkaFetcher struct {
	brokers []string
	opts    options
}

// NewKafkaFetcher builds a KafkaFetcher against the given broker list.
func NewKafkaFetcher(brokers []string, opts ...Option) *KafkaFetcher {
	return &KafkaFetcher{brokers: brokers, opts: newOptions(opts)}
}

func (f *KafkaFetcher) Name() string { return "kafka" }

// Fetch treats loc as "<topic>/<partition>".
func (f *KafkaFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	topic, part, ok := strings.Cut(loc, "/")
	p64, err := strconv.ParseInt(part, 10, 32)
	if !ok || topic == "" || err != nil {
		return Result{}, fmt.Errorf("fetch: kafka location must be \"topic/partition\": %q", loc)
	}
	partition := int32(p64)

	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	client, err := sarama.NewClient(f.brokers, cfg)
	if err != nil {
		return Result{}, err
	}
	defer client.Close()
	next, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return Result{}, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return Result{}, err
	}
	defer consumer.Close()

	newest, err := consumer.ConsumePartition(topic, partition, next-1)
	if err != nil {
		return Result{}, err
	}
	defer newest.Close()

	select {
	case msg := <-newest.Messages():
		limit := f.opts.maxBodySize
		if int64(len(msg.Value)) > limit {
			return Result{Body: msg.Value[:limit], Truncated: true}, ErrOversize
		}
		return Result{Body: msg.Value}, nil
	case err := <-newest.Errors():
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// PubSubFetcher pulls a single message from a Google Cloud Pub/Sub
// subscription and returns its payload as the subscription body.
type PubSubFetcher struct {
	client *pubsub.Client
	opts   options
}

// NewPubSubFetcher builds a PubSubFetcher for projectID using ambient
// Google application-default credentials.
func NewPubSubFetcher(ctx context.Context, projectID string, opts ...Option) (*PubSubFetcher, error) {
	c, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &PubSubFetcher{client: c, opts: newOptions(opts)}, nil
}

func (f *PubSubFetcher) Name() string { return "pubsub" }

// Fetch treats loc as a subscription ID and pulls (and acks) one message.
func (f *PubSubFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	sub := f.client.Subscriber(loc)
	pullCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var body []byte
	received := false
	err := sub.Receive(pullCtx, func(ctx context.Context, m *pubsub.Message) {
		body = m.Data
		m.Ack()
		received = true
		cancel()
	})
	if err != nil && err != context.Canceled {
		return Result{}, err
	}
	if !received {
		return Result{}, fmt.Errorf("fetch: no message available on subscription %q", loc)
	}

	limit := f.opts.maxBodySize
	if int64(len(body)) > limit {
		return Result{Body: body[:limit], Truncated: true}, ErrOversize
	}
	return Result{Body: body}, nil
}

// EventHubFetcher retrieves the most recent event from an Azure Event Hub
// partition.
type EventHubFetcher struct {
	hub  *eventhub.Hub
	opts options
}

// NewEventHubFetcher builds an EventHubFetcher from a connection string.
func NewEventHubFetcher(connStr string, opts ...Option) (*EventHubFetcher, error) {
	hub, err := eventhub.NewHubFromConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	return &EventHubFetcher{hub: hub, opts: newOptions(opts)}, nil
}

func (f *EventHubFetcher) Name() string { return "eventhub" }

// Fetch treats loc as a partition ID and returns the first event received
// within a short receive window.
func (f *EventHubFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var body []byte
	received := false
	handler := func(c context.Context, event *eventhub.Event) error {
		body = event.Data
		received = true
		cancel()
		return nil
	}

	handle, err := f.hub.Receive(recvCtx, loc, handler, eventhub.ReceiveWithLatestOffset())
	if err != nil {
		return Result{}, err
	}
	<-recvCtx.Done()
	_ = handle.Close(context.Background())

	if !received {
		return Result{}, fmt.Errorf("fetch: no event available on partition %q", loc)
	}
	limit := f.opts.maxBodySize
	if int64(len(body)) > limit {
		return Result{Body: body[:limit], Truncated: true}, ErrOversize
	}
	return Result{Body: body}, nil
}
