//go:build integration

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/dnd/pkg/log"
)

// Tests a write to one node is readable from a node that joined the cluster.
func TestServer_Cluster(t *testing.T) {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := NewServer(testConfig(t), log.NewNopLogger())
	require.NoError(t, err)
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, seed.Run(ctx))
	}()

	resp, err := http.Post(
		fmt.Sprintf("http://%s/kv/x", seed.KVAddr()),
		"application/json",
		strings.NewReader(`1`),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conf := testConfig(t)
	conf.Cluster.Join = seed.GossipAddr()
	node, err := NewServer(conf, log.NewNopLogger())
	require.NoError(t, err)
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, node.Run(ctx))
	}()

	get := func(addr string, key string) (int, string) {
		resp, err := http.Get(fmt.Sprintf("http://%s/kv/%s", addr, key))
		if err != nil {
			return 0, ""
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	assert.Eventually(t, func() bool {
		code, body := get(node.KVAddr(), "x")
		return code == http.StatusOK && body == "1"
	}, 10*time.Second, 20*time.Millisecond)

	resp, err = http.Post(
		fmt.Sprintf("http://%s/kv/y", node.KVAddr()),
		"application/json",
		strings.NewReader(`"from-node"`),
	)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		code, body := get(seed.KVAddr(), "y")
		return code == http.StatusOK && body == `"from-node"`
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
}
