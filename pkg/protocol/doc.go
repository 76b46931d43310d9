// Package protocol 定义 peershare 两条通道的文本线格式
//
// 控制通道（UDP 数据报，请求无需换行结尾）：
//
//	register <identity> <transferPort>   -> Registration successful
//	announce <resource> <identity>       -> Resource announced successfully
//	query resources                      -> 资源列表
//	query users                          -> 活跃用户列表
//	hello                                -> hello response（节点应答）
//	hello response                       -> 无响应，刷新存活
//	get resource_info <resource>         -> 持有者列表或未找到错误
//
// 传输通道（TCP 流）：
//
//	get <resource>  -> 文件原始字节直到连接关闭，或 "Error: File not found.\n"
//
// 报文内容即协议本身，这里的常量必须与线上文本逐字节一致。
package protocol
