// Package types 定义 peershare 的公共数据结构
//
// 这是最底层的包，不依赖任何其他 peershare 内部包。
// 所有类型都是纯值类型，用于在目录服务、节点客户端和下载器之间传递数据。
//
// 文件组织:
//   - peer.go     - PeerStatus, PeerInfo, PeerEndpoint
//   - resource.go - Owner, ResourceEntry
//
// pkg/types 只定义内存结构，控制通道和传输通道的文本格式见 pkg/protocol。
package types
