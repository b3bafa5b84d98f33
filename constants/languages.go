package constants

// RuntimeKind 被调试运行时的类型
type RuntimeKind string

const (
	// RuntimeBrowser 浏览器页面，脚本使用URL标识
	RuntimeBrowser RuntimeKind = "browser"
	// RuntimeNode node.js一类的运行时，脚本可能直接用文件系统路径标识
	RuntimeNode RuntimeKind = "node"
)

// LifecycleStatus 调试会话的生命周期状态
type LifecycleStatus string

const (
	Disabled LifecycleStatus = "disabled"
	// Enabling 已发送enable命令但还没有收到确认
	Enabling LifecycleStatus = "enabling"
	Running  LifecycleStatus = "running"
	Paused   LifecycleStatus = "paused"
)
