package repository_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sasagram/streamlog/internal/repository"
)

func TestIsConnectivityError(t *testing.T) {
	t.Parallel()

	tt := map[string]struct {
		err  error
		want bool
	}{
		"nil":               {nil, false},
		"deadline":          {fmt.Errorf("list streams: %w", context.DeadlineExceeded), true},
		"dns":               {&net.DNSError{Err: "no such host", Name: "db.internal"}, true},
		"dial":              {&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("i/o timeout")}, true},
		"refused":           {fmt.Errorf("connect: %w", syscall.ECONNREFUSED), true},
		"constraint":        {errors.New(`new row violates check constraint "streams_duration_hours_check"`), false},
		"context cancelled": {context.Canceled, false},
	}

	for scenario, tc := range tt {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, repository.IsConnectivityError(tc.err))
		})
	}
}
