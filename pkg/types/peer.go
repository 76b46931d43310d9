package types

import (
	"net/netip"
	"time"
)

// PeerStatus 目录中节点的存活状态
type PeerStatus int

const (
	// PeerStatusActive 活跃：在超时窗口内响应过存活探测
	PeerStatusActive PeerStatus = iota + 1
	// PeerStatusInactive 不活跃：超时未响应，其资源已被清理
	PeerStatusInactive
)

// String 返回节点状态的字符串表示
func (s PeerStatus) String() string {
	switch s {
	case PeerStatusActive:
		return "active"
	case PeerStatusInactive:
		return "inactive"
	default:
		return "invalid"
	}
}

// PeerInfo 目录中一条节点记录的快照
type PeerInfo struct {
	// Identity 节点自选的名称，作为目录键
	Identity string

	// ControlAddr 控制通道源地址（注册报文的来源）
	ControlAddr netip.AddrPort

	// TransferPort 节点传输通道监听端口
	TransferPort int

	// Status 存活状态
	Status PeerStatus

	// LastResponse 最近一次确认存活的时间
	LastResponse time.Time

	// RegisteredAt 注册时间
	RegisteredAt time.Time
}

// PeerEndpoint 存活探测的目标
type PeerEndpoint struct {
	Identity    string
	ControlAddr netip.AddrPort
}

// Unmap 把 IPv4 映射的 IPv6 地址还原为 IPv4 地址
//
// 双栈套接字和 net.UDPAddr 会产生 ::ffff:a.b.c.d 形式的地址，
// 目录以还原后的地址作为节点控制地址的比较键。
func Unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
