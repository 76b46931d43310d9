package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dep2p/go-peershare"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

// errInvalidChoice 持有者序号无法解析或超出范围
var errInvalidChoice = errors.New("invalid choice")

// session 菜单使用的节点操作
type session interface {
	Announce(ctx context.Context, name string) error
	QueryResources(ctx context.Context) ([]types.ResourceEntry, error)
	QueryUsers(ctx context.Context) ([]string, error)
	Download(ctx context.Context, name string, sel peershare.Selector) (peershare.DownloadResult, error)
}

// menu 交互式菜单
//
// 输入结束（EOF）等同于选择退出。
type menu struct {
	s   session
	in  *bufio.Scanner
	out io.Writer
}

func newMenu(s session, in io.Reader, out io.Writer) *menu {
	return &menu{s: s, in: bufio.NewScanner(in), out: out}
}

// run 循环显示菜单直到退出或 ctx 取消
func (m *menu) run(ctx context.Context) {
	for ctx.Err() == nil {
		m.printMenu()
		choice, ok := m.readLine()
		if !ok {
			return
		}

		switch choice {
		case "1":
			m.announce(ctx)
		case "2":
			m.queryResources(ctx)
		case "3":
			m.queryUsers(ctx)
		case "4":
			m.download(ctx)
		case "5":
			return
		default:
			fmt.Fprintln(m.out, "Invalid choice. Please try again.")
		}
	}
}

func (m *menu) printMenu() {
	fmt.Fprint(m.out, "\n--- MENU ---\n"+
		"1. Announce a resource\n"+
		"2. Query available resources\n"+
		"3. Query active users\n"+
		"4. Download a resource\n"+
		"5. Exit\n"+
		"Select an option: ")
}

// readLine 读取一行并去掉首尾空白，输入结束返回 false
func (m *menu) readLine() (string, bool) {
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *menu) prompt(text string) (string, bool) {
	fmt.Fprint(m.out, text)
	return m.readLine()
}

// ============================================================================
//                              菜单项
// ============================================================================

func (m *menu) announce(ctx context.Context) {
	name, ok := m.prompt("Enter resource name: ")
	if !ok {
		return
	}
	if err := m.s.Announce(ctx, name); err != nil {
		fmt.Fprintf(m.out, "Failed to announce resource: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Announced resource: %s\n", name)
}

func (m *menu) queryResources(ctx context.Context) {
	entries, err := m.s.QueryResources(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "Query failed: %v\n", err)
		return
	}
	fmt.Fprintln(m.out, protocol.FormatResources(entries))
}

func (m *menu) queryUsers(ctx context.Context) {
	users, err := m.s.QueryUsers(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "Query failed: %v\n", err)
		return
	}
	fmt.Fprintln(m.out, protocol.FormatUsers(users))
}

func (m *menu) download(ctx context.Context) {
	name, ok := m.prompt("Enter the name of the resource to download: ")
	if !ok {
		return
	}

	res, err := m.s.Download(ctx, name, m.selectOwner(name))
	switch {
	case err == nil:
		fmt.Fprintf(m.out, "Resource '%s' downloaded and saved as '%s'\n", name, res.Path)
	case errors.Is(err, peershare.ErrNoOwners):
		fmt.Fprintf(m.out, "No active owners found for resource '%s'.\n", name)
	case errors.Is(err, errInvalidChoice):
		fmt.Fprintln(m.out, "Invalid choice.")
	case errors.Is(err, peershare.ErrRemoteNotFound):
		fmt.Fprintf(m.out, "Owner no longer shares '%s'.\n", name)
	default:
		fmt.Fprintf(m.out, "Download failed: %v\n", err)
	}
}

// selectOwner 返回提示用户选择持有者的 Selector
func (m *menu) selectOwner(name string) peershare.Selector {
	return func(owners []types.Owner) (int, error) {
		fmt.Fprintf(m.out, "Available owners for resource '%s':\n", name)
		for i, o := range owners {
			fmt.Fprintf(m.out, "%d. %s %s %d\n", i+1, o.Identity, o.Address, o.Port)
		}

		line, ok := m.prompt(fmt.Sprintf("Select an owner (1-%d): ", len(owners)))
		if !ok {
			return 0, errInvalidChoice
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(owners) {
			return 0, errInvalidChoice
		}

		o := owners[n-1]
		fmt.Fprintf(m.out, "Downloading resource '%s' from %s (%s)\n", name, o.Identity, o.TransferAddr())
		return n - 1, nil
	}
}
