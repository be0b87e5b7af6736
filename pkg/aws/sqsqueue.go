package aws

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	smithy "github.com/aws/smithy-go"

	"github.com/storacha/cloud-mirror/pkg/queue"
)

// authErrorCodes are the SQS/STS API error codes that indicate a broken
// credential or permission configuration an operator must fix, as opposed
// to a transient condition worth retrying.
var authErrorCodes = map[string]bool{
	"AccessDenied":                 true,
	"AccessDeniedException":        true,
	"UnrecognizedClientException":  true,
	"InvalidClientTokenId":         true,
	"ExpiredToken":                 true,
	"ExpiredTokenException":        true,
	"SignatureDoesNotMatch":        true,
	"InvalidSignatureException":    true,
	"AuthFailure":                  true,
	"MissingAuthenticationToken":   true,
}

// wrapErr classifies err as queue.Fatal when it's an authentication/API
// credential failure (including a failure to even retrieve credentials,
// which aws-sdk-go-v2 surfaces as a plain error from the credential
// provider chain rather than a smithy.APIError), otherwise wraps it plainly
// so the caller retries.
func wrapErr(action string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return queue.Fatal(fmt.Errorf("%s: %w", action, err))
	}
	var credErr *aws.CredentialsCacheError
	if errors.As(err, &credErr) {
		return queue.Fatal(fmt.Errorf("%s: %w", action, err))
	}
	return fmt.Errorf("%s: %w", action, err)
}

// SQSQueue implements queue.Queue on Amazon SQS. The worker-pool lease
// vocabulary (receive, extend visibility, ack, redelivery, dead-letter) is
// carried over from the retry/visibility model the job-queue worker
// enforced in software for a SQL-backed queue; SQS provides each of those
// primitives natively, so this adapter is a thin translation rather than a
// reimplementation.
type SQSQueue struct {
	client *sqs.Client
}

var _ queue.Queue = (*SQSQueue)(nil)

// NewSQSQueue returns a queue.Queue backed by Amazon SQS.
func NewSQSQueue(cfg aws.Config, opts ...func(*sqs.Options)) *SQSQueue {
	return &SQSQueue{client: sqs.NewFromConfig(cfg, opts...)}
}

func (s *SQSQueue) Initialize(ctx context.Context, name, deadLetterSuffix string, maxReceiveCount int32) (string, string, error) {
	dlName := name + deadLetterSuffix
	dlOut, err := s.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(dlName)})
	if err != nil {
		return "", "", wrapErr(fmt.Sprintf("creating dead-letter queue %s", dlName), err)
	}

	dlAttrs, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       dlOut.QueueUrl,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", "", wrapErr("reading dead-letter queue arn", err)
	}
	dlArn := dlAttrs.Attributes[string(types.QueueAttributeNameQueueArn)]

	redrivePolicy := fmt.Sprintf(`{"deadLetterTargetArn":%q,"maxReceiveCount":%d}`, dlArn, maxReceiveCount)
	out, err := s.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameRedrivePolicy): redrivePolicy,
		},
	})
	if err != nil {
		return "", "", wrapErr(fmt.Sprintf("creating queue %s", name), err)
	}

	return aws.ToString(out.QueueUrl), aws.ToString(dlOut.QueueUrl), nil
}

func (s *SQSQueue) Send(ctx context.Context, queueURL string, v any) error {
	body, err := queue.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return wrapErr("sending message", err)
	}
	return nil
}

func (s *SQSQueue) Receive(ctx context.Context, queueURL string, batchSize int32, waitTime time.Duration) ([]queue.Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   batchSize,
		WaitTimeSeconds:       int32(waitTime.Seconds()),
		AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameApproximateReceiveCount},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, wrapErr("receiving messages", err)
	}
	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count := int32(0)
		if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				count = int32(n)
			}
		}
		msgs = append(msgs, queue.Message{
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiveCount:  count,
		})
	}
	return msgs, nil
}

func (s *SQSQueue) ExtendVisibility(ctx context.Context, queueURL string, msg queue.Message, timeout time.Duration) error {
	_, err := s.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: int32(timeout.Seconds()),
	})
	if err != nil {
		return wrapErr("extending message visibility", err)
	}
	return nil
}

func (s *SQSQueue) Ack(ctx context.Context, queueURL string, msg queue.Message) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return wrapErr("deleting message", err)
	}
	return nil
}

func (s *SQSQueue) ApproximateCounts(ctx context.Context, queueURL string) (int64, int64, error) {
	out, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return 0, 0, wrapErr("reading queue attributes", err)
	}
	visible, _ := strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)], 10, 64)
	inFlight, _ := strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)], 10, 64)
	return visible, inFlight, nil
}
