// Package metrics 提供传输统计与 Prometheus 指标导出
//
// 包含三部分：
//   - RateMeter：60 个 1 秒桶的滑动窗口速率计算
//   - TransferCounter：按资源统计文件服务发送与下载接收的字节数，
//     同时实现 prometheus.Collector；StartTrim 周期清理空闲资源的统计
//   - Exporter：在独立 HTTP 端点上导出注册表
//
// Module 提供注册表与导出器，两种角色都使用；TransferModule 只用于节点。
// 每个目录服务或节点实例使用自己的 prometheus.Registry，
// 同一进程内的多个实例（例如测试）互不冲突。
//
// # Fx 模块
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    metrics.Module(),
//	    metrics.TransferModule(),
//	    fx.Invoke(func(c *metrics.TransferCounter) {
//	        c.LogServed("movie.mp4", 1024)
//	    }),
//	)
package metrics
