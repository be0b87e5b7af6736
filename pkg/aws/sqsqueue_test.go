package aws

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/storacha/cloud-mirror/pkg/queue"
)

type fakeAPIError struct {
	code string
}

func (e *fakeAPIError) Error() string                { return "api error: " + e.code }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestWrapErr_ClassifiesAuthAPIErrorAsFatal(t *testing.T) {
	err := wrapErr("receiving messages", &fakeAPIError{code: "AccessDenied"})

	var fatal *queue.ErrFatal
	require.ErrorAs(t, err, &fatal)
}

func TestWrapErr_ClassifiesCredentialsCacheErrorAsFatal(t *testing.T) {
	err := wrapErr("receiving messages", &aws.CredentialsCacheError{Err: errors.New("no such file")})

	var fatal *queue.ErrFatal
	require.ErrorAs(t, err, &fatal)
}

func TestWrapErr_LeavesOtherErrorsNonFatal(t *testing.T) {
	err := wrapErr("receiving messages", &fakeAPIError{code: "ServiceUnavailable"})

	var fatal *queue.ErrFatal
	require.False(t, errors.As(err, &fatal))
}
