// Package peershare 提供基于目录服务的点对点文件共享
//
// 网络由一个目录服务和若干节点组成：
//
//   - Directory: 通过 UDP 控制通道接受注册、资源发布与查询，
//     并周期性探测节点存活，清理超时节点的资源
//   - Peer: 向目录注册并发布共享目录中的文件，
//     通过 TCP 传输通道直接从其他节点下载文件
//
// 目录服务是唯一的中心组件，文件内容从不经过目录。
//
// # 快速开始
//
//	dir, err := peershare.StartDirectory(ctx,
//	    peershare.WithDirectoryListenAddr(":12345"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer dir.Close()
//
//	peer, err := peershare.StartPeer(ctx,
//	    peershare.WithIdentity("alice"),
//	    peershare.WithDirectoryAddr("127.0.0.1:12345"),
//	    peershare.WithShareDir("./shared"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer peer.Close()
//
//	if _, err := peer.AnnounceShared(ctx); err != nil {
//	    log.Println(err)
//	}
//	res, err := peer.Download(ctx, "movie.mp4", nil)
//
// # 控制协议
//
// 控制通道为单数据报文本命令：
//
//	register <identity> <transfer_port>   → Registration successful
//	announce <resource> <identity>        → Resource announced successfully
//	query resources                       → Resources:\n<name> (Owner: ..., IP: ..., TCP Port: ...)\n...
//	query users                           → Active users:\n<identity>\n...
//	get resource_info <resource>          → <identity> <ip> <port>\n... 或 Error: Resource '<name>' not found.
//	hello                                 → hello response（目录发起的存活探测）
//
// 传输通道每个连接一个请求：get <name>，响应为文件原始字节，
// 或 Error: File not found.\n，随后服务端关闭连接。
//
// # 架构
//
//	┌───────────────────────────── Directory ─────────────────────────────┐
//	│  server (UDP 读取循环) → handler → store ← liveness monitor          │
//	└──────────────────────────────────────────────────────────────────────┘
//	┌─────────────────────────────── Peer ────────────────────────────────┐
//	│  control client (UDP)   fileserver (TCP)   downloader   share        │
//	└──────────────────────────────────────────────────────────────────────┘
//
// 组件通过 go.uber.org/fx 组装，启动与停止顺序由 fx 生命周期管理。
package peershare
