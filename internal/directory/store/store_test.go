package store

import (
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peershare/pkg/types"
)

const testTimeout = 15 * time.Second

func addr(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func newTestStore() (*Store, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(clk), clk
}

// TestStore_Register 测试注册后立即可见
func TestStore_Register(t *testing.T) {
	s, clk := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.Register("bob", addr("10.0.0.2:5000"), 4001)

	assert.Equal(t, []string{"alice", "bob"}, s.ActivePeers())

	info, ok := s.Peer("alice")
	require.True(t, ok)
	assert.Equal(t, types.PeerStatusActive, info.Status)
	assert.Equal(t, 4000, info.TransferPort)
	assert.Equal(t, clk.Now(), info.LastResponse)
	assert.Equal(t, clk.Now(), info.RegisteredAt)

	_, ok = s.Peer("carol")
	assert.False(t, ok)
}

// TestStore_ReRegister 测试同一身份重新注册原地刷新
func TestStore_ReRegister(t *testing.T) {
	s, clk := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.Register("bob", addr("10.0.0.2:5000"), 4001)
	clk.Add(20 * time.Second)
	require.Equal(t, []string{"alice", "bob"}, s.SweepExpired(clk.Now(), testTimeout))

	s.Register("alice", addr("10.0.0.1:6000"), 4100)

	peers := s.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, "alice", peers[0].Identity)
	assert.Equal(t, addr("10.0.0.1:6000"), peers[0].ControlAddr)
	assert.Equal(t, 4100, peers[0].TransferPort)
	assert.Equal(t, types.PeerStatusActive, peers[0].Status)
	assert.Equal(t, clk.Now(), peers[0].LastResponse)
}

// TestStore_Resources 测试资源解析与过滤
func TestStore_Resources(t *testing.T) {
	s, _ := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.AddResource("a.txt", "alice")
	s.AddResource("ghost.txt", "nobody")
	s.AddResource("a.txt", "alice")
	s.AddResource("b.txt", "alice")

	entries := s.Resources()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.Equal(t, types.Owner{
		Identity: "alice",
		Address:  netip.MustParseAddr("10.0.0.1"),
		Port:     4000,
	}, entries[0].Owner)

	// 未知持有者的资源仍然保存，只是不可见
	assert.Equal(t, 3, s.Stats().Resources)
	assert.Empty(t, s.Owners("ghost.txt"))

	// 持有者后来注册，资源变为可见
	s.Register("nobody", addr("10.0.0.9:5000"), 4009)
	owners := s.Owners("ghost.txt")
	require.Len(t, owners, 1)
	assert.Equal(t, "nobody", owners[0].Identity)
}

// TestStore_Owners 测试多持有者
func TestStore_Owners(t *testing.T) {
	s, _ := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.Register("bob", addr("10.0.0.2:5000"), 4001)
	s.AddResource("shared.iso", "alice")
	s.AddResource("shared.iso", "bob")

	owners := s.Owners("shared.iso")
	require.Len(t, owners, 2)
	assert.Equal(t, "alice", owners[0].Identity)
	assert.Equal(t, "bob", owners[1].Identity)

	assert.Empty(t, s.Owners("never-announced"))
}

// TestStore_SweepExpired 测试超时降级与资源清理
func TestStore_SweepExpired(t *testing.T) {
	s, clk := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.Register("bob", addr("10.0.0.2:5000"), 4001)
	s.AddResource("a.txt", "alice")
	s.AddResource("shared.iso", "alice")
	s.AddResource("shared.iso", "bob")

	// 恰好等于超时不降级
	clk.Add(testTimeout)
	assert.Empty(t, s.SweepExpired(clk.Now(), testTimeout))

	// bob 应答，alice 静默
	require.True(t, s.MarkAlive(addr("10.0.0.2:5000")))
	clk.Add(time.Second)

	demoted := s.SweepExpired(clk.Now(), testTimeout)
	assert.Equal(t, []string{"alice"}, demoted)

	assert.Equal(t, []string{"bob"}, s.ActivePeers())
	assert.Empty(t, s.Owners("a.txt"))
	owners := s.Owners("shared.iso")
	require.Len(t, owners, 1)
	assert.Equal(t, "bob", owners[0].Identity)

	st := s.Stats()
	assert.Equal(t, 2, st.TotalPeers)
	assert.Equal(t, 1, st.ActivePeers)
	assert.Equal(t, 1, st.Resources)
	assert.Equal(t, uint64(1), st.Demotions)

	// 不活跃节点保留记录
	info, ok := s.Peer("alice")
	require.True(t, ok)
	assert.Equal(t, types.PeerStatusInactive, info.Status)

	// 已降级节点不会被重复降级
	clk.Add(time.Minute)
	assert.Equal(t, []string{"bob"}, s.SweepExpired(clk.Now(), testTimeout))
}

// TestStore_MarkAlive 测试存活应答恢复活跃
func TestStore_MarkAlive(t *testing.T) {
	s, clk := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	s.AddResource("a.txt", "alice")
	clk.Add(time.Minute)
	require.Equal(t, []string{"alice"}, s.SweepExpired(clk.Now(), testTimeout))
	require.Empty(t, s.ActivePeers())

	// 地址端口必须完全一致
	assert.False(t, s.MarkAlive(addr("10.0.0.1:5001")))
	assert.False(t, s.MarkAlive(addr("10.0.0.99:5000")))
	assert.Empty(t, s.ActivePeers())

	assert.True(t, s.MarkAlive(addr("10.0.0.1:5000")))
	assert.Equal(t, []string{"alice"}, s.ActivePeers())

	info, _ := s.Peer("alice")
	assert.Equal(t, clk.Now(), info.LastResponse)

	// 降级时清理的资源不会自动恢复，需要重新发布
	assert.Empty(t, s.Resources())
}

// TestStore_ActiveEndpoints 测试探测目标只含活跃节点
func TestStore_ActiveEndpoints(t *testing.T) {
	s, clk := newTestStore()

	s.Register("alice", addr("10.0.0.1:5000"), 4000)
	clk.Add(time.Minute)
	s.Register("bob", addr("10.0.0.2:5000"), 4001)
	s.SweepExpired(clk.Now(), testTimeout)

	assert.Equal(t, []types.PeerEndpoint{
		{Identity: "bob", ControlAddr: addr("10.0.0.2:5000")},
	}, s.ActiveEndpoints())
}

// TestStore_ConcurrentRegister 测试并发注册不破坏状态
func TestStore_ConcurrentRegister(t *testing.T) {
	s := New(nil)
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("peer-%03d", i)
			s.Register(id, netip.AddrPortFrom(netip.MustParseAddr("10.1.0.1"), uint16(10000+i)), 20000+i)
			s.AddResource("file-"+id, id)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.ActivePeers(), n)
	assert.Len(t, s.Resources(), n)
	assert.Equal(t, n, s.Stats().TotalPeers)
}

// TestStore_QueryAndSweepNoDeadlock 测试资源查询与存活清理并发执行能够结束
func TestStore_QueryAndSweepNoDeadlock(t *testing.T) {
	s, clk := newTestStore()
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("peer-%02d", i)
		s.Register(id, netip.AddrPortFrom(netip.MustParseAddr("10.2.0.1"), uint16(10000+i)), 20000+i)
		s.AddResource("shared.bin", id)
		s.AddResource("own-"+id, id)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	worker := func(fn func(i int)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
					fn(i)
				}
			}
		}()
	}

	for w := 0; w < 4; w++ {
		worker(func(int) { _ = s.Resources() })
		worker(func(int) { _ = s.Owners("shared.bin") })
	}
	worker(func(int) { s.SweepExpired(clk.Now().Add(time.Minute), testTimeout) })
	worker(func(i int) {
		port := uint16(10000 + i%50)
		s.MarkAlive(netip.AddrPortFrom(netip.MustParseAddr("10.2.0.1"), port))
		id := fmt.Sprintf("peer-%02d", i%50)
		s.AddResource("own-"+id, id)
	})
	worker(func(i int) { s.Register(fmt.Sprintf("late-%d", i%10), addr("10.3.0.1:7000"), 7000) })

	time.Sleep(300 * time.Millisecond)
	close(stop)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("query and sweep workers did not terminate")
	}
}
