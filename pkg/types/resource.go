package types

import (
	"net"
	"net/netip"
	"strconv"
)

// Owner 持有某资源的活跃节点
type Owner struct {
	// Identity 节点名称
	Identity string

	// Address 节点控制通道的 IP，也是其传输通道的可达地址
	Address netip.Addr

	// Port 传输通道端口
	Port int
}

// TransferAddr 返回传输通道的拨号地址 "ip:port"
func (o Owner) TransferAddr() string {
	return net.JoinHostPort(o.Address.String(), strconv.Itoa(o.Port))
}

// ResourceEntry 资源查询结果中的一项
type ResourceEntry struct {
	// Name 资源名
	Name string

	// Owner 持有者信息
	Owner Owner
}
