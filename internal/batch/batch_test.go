package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Filename: fmt.Sprintf("f%d.png", i), Data: []byte{byte(i)}}
	}
	return out
}

func TestRunPartialFailure(t *testing.T) {
	for _, mode := range []Mode{Sequential, Concurrent} {
		t.Run(fmt.Sprint(mode), func(t *testing.T) {
			op := func(_ context.Context, it Item) (string, error) {
				if it.Data[0] == 1 {
					return "", errors.New("engine failed")
				}
				return "text-" + it.Filename, nil
			}

			res, err := Run(context.Background(), items(3), mode, op)
			require.NoError(t, err)

			assert.Equal(t, 3, res.Total)
			assert.Equal(t, 2, res.Successful)
			assert.Equal(t, 1, res.Failed)
			require.Len(t, res.Items, 3)

			for i, r := range res.Items {
				assert.Equal(t, i, r.Index)
				assert.Equal(t, fmt.Sprintf("f%d.png", i), r.Filename)
			}
			assert.True(t, res.Items[0].Success)
			assert.Equal(t, "text-f0.png", res.Items[0].Value)
			assert.False(t, res.Items[1].Success)
			assert.Equal(t, "engine failed", res.Items[1].Error)
			assert.Equal(t, DefaultErrorKind, res.Items[1].ErrorKind)
			assert.True(t, res.Items[2].Success)
		})
	}
}

func TestRunLimits(t *testing.T) {
	op := func(context.Context, Item) (int, error) { return 0, nil }

	_, err := Run(context.Background(), nil, Sequential, op)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = Run(context.Background(), items(MaxItems+1), Sequential, op)
	assert.ErrorIs(t, err, ErrTooManyItems)

	res, err := Run(context.Background(), items(MaxItems), Sequential, op)
	require.NoError(t, err)
	assert.Equal(t, MaxItems, res.Successful)

	_, err = RunLimit(context.Background(), items(3), 2, Sequential, op)
	assert.ErrorIs(t, err, ErrTooManyItems)
}

func TestRunPrefailedItems(t *testing.T) {
	var calls atomic.Int32
	op := func(context.Context, Item) (int, error) {
		calls.Add(1)
		return 1, nil
	}
	in := items(2)
	in[0].Err = &ItemError{Kind: "invalid_file", Err: errors.New("not an image")}

	res, err := Run(context.Background(), in, Sequential, op)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, res.Items[0].Success)
	assert.Equal(t, "invalid_file", res.Items[0].ErrorKind)
	assert.Equal(t, "not an image", res.Items[0].Error)
	assert.True(t, res.Items[1].Success)
}

func TestRunSequentialOrder(t *testing.T) {
	var order []int
	op := func(_ context.Context, it Item) (int, error) {
		order = append(order, int(it.Data[0]))
		return 0, nil
	}
	_, err := Run(context.Background(), items(5), Sequential, op)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunConcurrentSubmitsAll(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	op := func(_ context.Context, it Item) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return int(it.Data[0]), nil
	}

	done := make(chan *Result[int])
	go func() {
		res, _ := Run(context.Background(), items(4), Concurrent, op)
		done <- res
	}()

	require.Eventually(t, func() bool { return peak.Load() == 4 }, time.Second, 5*time.Millisecond)
	close(release)
	res := <-done
	assert.Equal(t, 4, res.Successful)
	for i, r := range res.Items {
		assert.Equal(t, i, r.Value)
	}
}
