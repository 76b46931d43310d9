package downloader

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/peer/fileserver"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

// staticResolver 返回固定的持有者列表
type staticResolver struct {
	owners []types.Owner
	err    error
	asked  []string
}

func (r *staticResolver) LookupOwners(_ context.Context, name string) ([]types.Owner, error) {
	r.asked = append(r.asked, name)
	return r.owners, r.err
}

func transferConfig(downloadDir string) config.TransferConfig {
	cfg := config.DefaultTransferConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.DownloadDir = downloadDir
	return cfg
}

// startOwner 启动一个共享 files 的文件服务器，返回对应的持有者
func startOwner(t *testing.T, identity string, files map[string]string) types.Owner {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	s := fileserver.New(transferConfig(t.TempDir()), dir)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Stop() })

	return types.Owner{
		Identity: identity,
		Address:  netip.MustParseAddr("127.0.0.1"),
		Port:     s.Port(),
	}
}

// unusedPort 返回一个当前没有监听者的端口
func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// ============================================================================
// 下载测试
// ============================================================================

// TestDownload_FirstOwner 测试默认选择第一个持有者
func TestDownload_FirstOwner(t *testing.T) {
	owner := startOwner(t, "alice", map[string]string{"notes.txt": "line one\nline two\n"})
	dl := t.TempDir()
	counter := metrics.NewTransferCounter(clock.NewMock())

	r := &staticResolver{owners: []types.Owner{owner}}
	d := New(transferConfig(dl), r, WithCounter(counter))

	res, err := d.Download(context.Background(), "notes.txt", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"notes.txt"}, r.asked)
	assert.Equal(t, filepath.Join(dl, "downloaded_alice_notes.txt"), res.Path)
	assert.Equal(t, owner, res.Owner)
	assert.Equal(t, int64(18), res.Bytes)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
	assert.Equal(t, []string{"downloaded_alice_notes.txt"}, listDir(t, dl))

	assert.Equal(t, int64(18), counter.Totals().Downloaded)
}

// TestDownload_Selector 测试调用方选择持有者
func TestDownload_Selector(t *testing.T) {
	alice := startOwner(t, "alice", map[string]string{"a.bin": "from alice"})
	bob := startOwner(t, "bob", map[string]string{"a.bin": "from bob"})
	dl := t.TempDir()

	d := New(transferConfig(dl), &staticResolver{owners: []types.Owner{alice, bob}})
	res, err := d.Download(context.Background(), "a.bin", func(owners []types.Owner) (int, error) {
		require.Len(t, owners, 2)
		return 1, nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dl, "downloaded_bob_a.bin"))
	require.NoError(t, err)
	assert.Equal(t, "from bob", string(data))
	assert.Equal(t, "bob", res.Owner.Identity)
}

// TestDownload_InvalidSelection 测试选择越界
func TestDownload_InvalidSelection(t *testing.T) {
	owner := startOwner(t, "alice", nil)
	d := New(transferConfig(t.TempDir()), &staticResolver{owners: []types.Owner{owner}})

	for _, idx := range []int{-1, 1, 7} {
		_, err := d.Download(context.Background(), "a.bin", func([]types.Owner) (int, error) { return idx, nil })
		assert.ErrorIs(t, err, ErrInvalidSelection)
	}

	abort := errors.New("user cancelled")
	_, err := d.Download(context.Background(), "a.bin", func([]types.Owner) (int, error) { return 0, abort })
	assert.ErrorIs(t, err, abort)
}

// TestDownload_NoOwners 测试目录没有活跃持有者
func TestDownload_NoOwners(t *testing.T) {
	d := New(transferConfig(t.TempDir()), &staticResolver{
		err: protocol.ErrResourceNotFound,
	})
	_, err := d.Download(context.Background(), "ghost.txt", nil)
	assert.ErrorIs(t, err, ErrNoOwners)

	d = New(transferConfig(t.TempDir()), &staticResolver{})
	_, err = d.Download(context.Background(), "ghost.txt", nil)
	assert.ErrorIs(t, err, ErrNoOwners)

	transport := errors.New("directory unreachable")
	d = New(transferConfig(t.TempDir()), &staticResolver{err: transport})
	_, err = d.Download(context.Background(), "ghost.txt", nil)
	assert.ErrorIs(t, err, transport)
	assert.NotErrorIs(t, err, ErrNoOwners)
}

// TestFetch_RemoteNotFound 测试持有者没有该文件时不留下本地文件
func TestFetch_RemoteNotFound(t *testing.T) {
	owner := startOwner(t, "alice", map[string]string{"other.txt": "x"})
	dl := t.TempDir()
	d := New(transferConfig(dl), &staticResolver{})

	_, err := d.Fetch(context.Background(), owner, "missing.txt")
	assert.ErrorIs(t, err, ErrRemoteNotFound)
	assert.Empty(t, listDir(t, dl))
}

// TestFetch_ContentLooksLikeErrorPrefix 测试以错误文本开头但更长的文件正常保存
func TestFetch_ContentLooksLikeErrorPrefix(t *testing.T) {
	content := protocol.FileNotFound + "but this is a real file"
	owner := startOwner(t, "alice", map[string]string{"tricky.txt": content})
	dl := t.TempDir()
	d := New(transferConfig(dl), &staticResolver{})

	res, err := d.Fetch(context.Background(), owner, "tricky.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

// TestFetch_ConnectFailure 测试连接失败不重试也不留下文件
func TestFetch_ConnectFailure(t *testing.T) {
	dl := t.TempDir()
	d := New(transferConfig(dl), &staticResolver{})

	owner := types.Owner{Identity: "alice", Address: netip.MustParseAddr("127.0.0.1"), Port: unusedPort(t)}
	_, err := d.Fetch(context.Background(), owner, "a.txt")
	require.Error(t, err)
	assert.Empty(t, listDir(t, dl))
}

// TestFetch_InvalidNames 测试不能作为本地文件名的输入
func TestFetch_InvalidNames(t *testing.T) {
	d := New(transferConfig(t.TempDir()), &staticResolver{})
	owner := types.Owner{Identity: "alice", Address: netip.MustParseAddr("127.0.0.1"), Port: 1}

	for _, name := range []string{"", "../escape", "dir/file", ".."} {
		_, err := d.Fetch(context.Background(), owner, name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	owner.Identity = "../bob"
	_, err := d.Fetch(context.Background(), owner, "a.txt")
	assert.ErrorIs(t, err, ErrInvalidName)
}

// TestLocalName 测试本地文件名格式
func TestLocalName(t *testing.T) {
	assert.Equal(t, "downloaded_alice_song.mp3", LocalName("alice", "song.mp3"))
}
