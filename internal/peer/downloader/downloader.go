// Package downloader 实现从资源持有者获取文件
//
// 下载分三步：向目录查询持有者，由调用方选择一个持有者，
// 连接其文件服务器并把数据流写入下载目录中的 downloaded_<owner>_<name>。
// 连接失败不会自动尝试其他持有者。
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("peer/downloader")

// Resolver 查询资源持有者
type Resolver interface {
	LookupOwners(ctx context.Context, name string) ([]types.Owner, error)
}

// Selector 从持有者列表中选择一个，返回其序号
type Selector func(owners []types.Owner) (int, error)

// FirstOwner 总是选择第一个持有者
func FirstOwner(_ []types.Owner) (int, error) {
	return 0, nil
}

// Result 下载结果
type Result struct {
	// Path 保存的本地文件路径
	Path string

	// Owner 提供文件的持有者
	Owner types.Owner

	// Bytes 接收的字节数
	Bytes int64
}

// Downloader 文件下载器
type Downloader struct {
	cfg      config.TransferConfig
	resolver Resolver
	counter  *metrics.TransferCounter
}

// Option 下载器选项
type Option func(*Downloader)

// WithCounter 记录接收字节数
func WithCounter(c *metrics.TransferCounter) Option {
	return func(d *Downloader) {
		d.counter = c
	}
}

// New 创建下载器
func New(cfg config.TransferConfig, resolver Resolver, opts ...Option) *Downloader {
	d := &Downloader{cfg: cfg, resolver: resolver}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LocalName 返回下载文件的本地文件名
func LocalName(owner, name string) string {
	return "downloaded_" + owner + "_" + name
}

// Download 查询 name 的持有者，用 sel 选择一个并下载
//
// sel 为 nil 时选择第一个持有者。
func (d *Downloader) Download(ctx context.Context, name string, sel Selector) (Result, error) {
	owners, err := d.resolver.LookupOwners(ctx, name)
	if err != nil {
		if errors.Is(err, protocol.ErrResourceNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrNoOwners, name)
		}
		return Result{}, err
	}
	if len(owners) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoOwners, name)
	}

	if sel == nil {
		sel = FirstOwner
	}
	idx, err := sel(owners)
	if err != nil {
		return Result{}, err
	}
	if idx < 0 || idx >= len(owners) {
		return Result{}, fmt.Errorf("%w: %d of %d", ErrInvalidSelection, idx, len(owners))
	}

	return d.Fetch(ctx, owners[idx], name)
}

// Fetch 从 owner 获取 name
//
// 数据先写入下载目录中的临时文件，完整接收后重命名。
// 持有者回复文件不存在时删除临时文件并返回 ErrRemoteNotFound。
func (d *Downloader) Fetch(ctx context.Context, owner types.Owner, name string) (Result, error) {
	if err := checkLocalName(name); err != nil {
		return Result{}, err
	}
	if err := checkLocalName(owner.Identity); err != nil {
		return Result{}, err
	}

	dialer := net.Dialer{Timeout: d.cfg.DialTimeout.Duration()}
	conn, err := dialer.DialContext(ctx, "tcp", owner.TransferAddr())
	if err != nil {
		return Result{}, fmt.Errorf("connect to %s: %w", owner.Identity, err)
	}
	defer conn.Close()

	// 取消时关闭连接以中断阻塞的读取
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, protocol.TransferRequest(name)); err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	tmp, err := os.CreateTemp(d.cfg.DownloadDir, ".peershare-*.part")
	if err != nil {
		return Result{}, err
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	head := &prefixWriter{limit: len(protocol.FileNotFound) + 1}
	n, err := io.Copy(io.MultiWriter(tmp, head), conn)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return Result{}, fmt.Errorf("receive %s from %s: %w", name, owner.Identity, err)
	}

	if head.equals(protocol.FileNotFound) {
		return Result{}, fmt.Errorf("%w: %s on %s", ErrRemoteNotFound, name, owner.Identity)
	}

	path := filepath.Join(d.cfg.DownloadDir, LocalName(owner.Identity, name))
	if err := os.Rename(tmpPath, path); err != nil {
		return Result{}, err
	}
	keep = true

	if d.counter != nil {
		d.counter.LogDownloaded(name, n)
	}
	log.Info("file downloaded", "resource", name, "owner", owner.Identity, "path", path, "bytes", n)

	return Result{Path: path, Owner: owner, Bytes: n}, nil
}

func checkLocalName(name string) error {
	if name == "" || name != filepath.Base(name) || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// prefixWriter 保留数据流的前 limit 个字节
type prefixWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		w.buf.Write(p[:room])
	}
	return len(p), nil
}

// equals 判断完整数据流是否恰好等于 s
func (w *prefixWriter) equals(s string) bool {
	return w.buf.Len() == len(s) && w.buf.String() == s
}
