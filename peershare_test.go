package peershare

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/dep2p/go-peershare/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

func startTestDirectory(t *testing.T, opts ...Option) *Directory {
	t.Helper()
	opts = append([]Option{WithDirectoryListenAddr("127.0.0.1:0")}, opts...)
	dir, err := StartDirectory(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })
	return dir
}

func startTestPeer(t *testing.T, dir *Directory, identity string, files map[string]string, extra ...Option) *Peer {
	t.Helper()
	shareDir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(shareDir, name), []byte(content), 0o644))
	}

	opts := []Option{
		WithIdentity(identity),
		WithDirectoryAddr(dir.Addr().String()),
		WithControlListenAddr("127.0.0.1:0"),
		WithTransferListenAddr("127.0.0.1:0"),
		WithShareDir(shareDir),
		WithDownloadDir(t.TempDir()),
		WithRequestTimeout(5 * time.Second),
	}
	p, err := StartPeer(context.Background(), append(opts, extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// ============================================================================
// 端到端测试
// ============================================================================

// TestShareAndDownload 测试注册、发布、查询与下载的完整流程
func TestShareAndDownload(t *testing.T) {
	ctx := context.Background()
	dir := startTestDirectory(t)

	alice := startTestPeer(t, dir, "alice", map[string]string{
		"song.mp3":  "not really an mp3",
		"notes.txt": "remember the milk\n",
	})
	bob := startTestPeer(t, dir, "bob", nil)

	assert.Equal(t, []string{"alice", "bob"}, dir.ActivePeers())

	names, err := alice.AnnounceShared(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt", "song.mp3"}, names)

	users, err := bob.QueryUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	entries, err := bob.QueryResources(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "notes.txt", entries[0].Name)
	assert.Equal(t, "alice", entries[0].Owner.Identity)
	assert.Equal(t, alice.TransferPort(), entries[0].Owner.Port)

	res, err := bob.Download(ctx, "song.mp3", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(bob.DownloadDir(), "downloaded_alice_song.mp3"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "not really an mp3", string(data))

	assert.Equal(t, int64(len(data)), bob.TransferStats().Downloaded)
	require.Eventually(t, func() bool {
		return alice.TransferStats().Served == int64(len(data))
	}, time.Second, 10*time.Millisecond)

	_, err = bob.Download(ctx, "unknown.bin", nil)
	assert.ErrorIs(t, err, ErrNoOwners)
}

// TestDownload_RemoteFileRemoved 测试持有者删除文件后下载失败且不留下文件
func TestDownload_RemoteFileRemoved(t *testing.T) {
	ctx := context.Background()
	dir := startTestDirectory(t)

	alice := startTestPeer(t, dir, "alice", map[string]string{"gone.txt": "soon deleted"})
	bob := startTestPeer(t, dir, "bob", nil)

	require.NoError(t, alice.Announce(ctx, "gone.txt"))
	require.NoError(t, os.Remove(filepath.Join(alice.ShareDir(), "gone.txt")))

	_, err := bob.Download(ctx, "gone.txt", nil)
	assert.ErrorIs(t, err, ErrRemoteNotFound)

	entries, err := os.ReadDir(bob.DownloadDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestSilentPeerDemoted 测试不应答探测的节点被降级，资源随之消失
func TestSilentPeerDemoted(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	dir := startTestDirectory(t, WithClock(clk), WithLiveness(5*time.Second, 15*time.Second))

	alice := startTestPeer(t, dir, "alice", nil)

	// ghost 注册后从不应答 hello
	ghost, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ghost.Close()
	request := func(msg string) string {
		_, err := ghost.WriteToUDPAddrPort([]byte(msg), dir.Addr())
		require.NoError(t, err)
		buf := make([]byte, 4096)
		for {
			require.NoError(t, ghost.SetReadDeadline(time.Now().Add(2*time.Second)))
			n, _, err := ghost.ReadFromUDPAddrPort(buf)
			require.NoError(t, err)
			if reply := string(buf[:n]); reply != "hello" {
				return reply
			}
		}
	}
	require.Equal(t, "Registration successful", request("register ghost 9"))
	require.Equal(t, "Resource announced successfully", request("announce haunted.txt ghost"))

	owners, err := alice.LookupOwners(ctx, "haunted.txt")
	require.NoError(t, err)
	require.Len(t, owners, 1)

	// 每个周期等 alice 的应答到达后再推进时间
	for i := 0; i < 4; i++ {
		clk.Add(5 * time.Second)
		dir.CheckLiveness(ctx)
		now := clk.Now()
		require.Eventually(t, func() bool {
			for _, info := range dir.Peers() {
				if info.Identity == "alice" {
					return !info.LastResponse.Before(now)
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	}

	users, err := alice.QueryUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)

	_, err = alice.LookupOwners(ctx, "haunted.txt")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	entries, err := alice.QueryResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 迟到的应答恢复活跃，但资源需要重新发布
	_, err = ghost.WriteToUDPAddrPort([]byte("hello response"), dir.Addr())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(dir.ActivePeers()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, dir.Owners("haunted.txt"))

	var ghostInfo types.PeerInfo
	for _, info := range dir.Peers() {
		if info.Identity == "ghost" {
			ghostInfo = info
		}
	}
	assert.Equal(t, types.PeerStatusActive, ghostInfo.Status)
}

// TestRegistrationRejected 测试目录拒绝注册时节点启动失败
func TestRegistrationRejected(t *testing.T) {
	fake, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer fake.Close()

	go func() {
		buf := make([]byte, 4096)
		_ = fake.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, src, err := fake.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		_, _ = fake.WriteToUDPAddrPort([]byte("Registration failed"), src)
	}()

	_, err = StartPeer(context.Background(),
		WithIdentity("alice"),
		WithDirectoryAddr(types.Unmap(fake.LocalAddr().(*net.UDPAddr).AddrPort()).String()),
		WithControlListenAddr("127.0.0.1:0"),
		WithTransferListenAddr("127.0.0.1:0"),
		WithShareDir(t.TempDir()),
	)
	assert.ErrorIs(t, err, ErrRegistrationRejected)
}

// TestStartPeer_MissingConfig 测试缺少必需配置
func TestStartPeer_MissingConfig(t *testing.T) {
	_, err := StartPeer(context.Background(), WithDirectoryAddr("127.0.0.1:12345"))
	assert.ErrorIs(t, err, ErrIdentityRequired)

	_, err = StartPeer(context.Background(), WithIdentity("alice"))
	assert.ErrorIs(t, err, ErrDirectoryRequired)

	_, err = StartPeer(context.Background(),
		WithIdentity("two words"),
		WithDirectoryAddr("127.0.0.1:12345"))
	assert.Error(t, err)
}

// TestStartDirectory_InvalidLiveness 测试存活配置校验
func TestStartDirectory_InvalidLiveness(t *testing.T) {
	_, err := StartDirectory(context.Background(),
		WithDirectoryListenAddr("127.0.0.1:0"),
		WithLiveness(10*time.Second, 5*time.Second))
	assert.Error(t, err)
}

// TestPeerClose 测试关闭后请求失败
func TestPeerClose(t *testing.T) {
	dir := startTestDirectory(t)
	p := startTestPeer(t, dir, "alice", nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.QueryUsers(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// TestDirectoryMetrics 测试目录服务指标导出
func TestDirectoryMetrics(t *testing.T) {
	dir := startTestDirectory(t, WithMetrics("127.0.0.1:0"))
	startTestPeer(t, dir, "alice", nil)

	require.NotNil(t, dir.MetricsAddr())
	resp, err := http.Get("http://" + dir.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "peershare_directory_active_peers 1")
	assert.Contains(t, string(body), `peershare_directory_requests_total{command="register"} 1`)
	assert.NotContains(t, string(body), "peershare_transfer_")
}

// scrape 读取指标端点内容
func scrape(t *testing.T, addr net.Addr) string {
	t.Helper()
	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// TestPeerMetrics 测试节点导出总量与按资源的传输指标
func TestPeerMetrics(t *testing.T) {
	ctx := context.Background()
	dir := startTestDirectory(t)

	alice := startTestPeer(t, dir, "alice", map[string]string{"notes.txt": "0123456789"},
		WithMetrics("127.0.0.1:0"))
	bob := startTestPeer(t, dir, "bob", nil, WithMetrics("127.0.0.1:0"))

	_, err := alice.AnnounceShared(ctx)
	require.NoError(t, err)
	_, err = bob.Download(ctx, "notes.txt", nil)
	require.NoError(t, err)

	body := scrape(t, bob.MetricsAddr())
	assert.Contains(t, body, `peershare_transfer_bytes_total{direction="downloaded"} 10`)
	assert.Contains(t, body, `peershare_resource_transfer_bytes_total{direction="downloaded",resource="notes.txt"} 10`)
	assert.Contains(t, body, `peershare_resource_transfers_total{direction="downloaded",resource="notes.txt"} 1`)
	assert.NotContains(t, body, `direction="served",resource="notes.txt"`)

	require.Eventually(t, func() bool {
		return alice.TransferStats().Served == 10
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, scrape(t, alice.MetricsAddr()),
		`peershare_resource_transfer_bytes_total{direction="served",resource="notes.txt"} 10`)
}

// TestFxEventLogger 测试 fx 事件日志被丢弃
func TestFxEventLogger(t *testing.T) {
	l := newFxEventLogger()
	require.IsType(t, &fxevent.ZapLogger{}, l)
	assert.NotPanics(t, func() { l.LogEvent(&fxevent.Started{}) })

	app := fx.New(fxLogging())
	assert.NoError(t, app.Err())
}

// TestVersionInfo 测试版本信息
func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)
}
