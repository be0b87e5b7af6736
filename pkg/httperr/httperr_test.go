package httperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindNotFound_MapsTo404(t *testing.T) {
	err := New(KindNotFound, "handle-redirect", errors.New("no pool registered"))

	require.Equal(t, http.StatusNotFound, err.StatusCode())
	require.Equal(t, "resource not found", err.PublicMessage())
}
