package config

const (
	// DefaultTrimCeiling 工作集上限 / Working-set ceiling
	DefaultTrimCeiling = 100
	// DefaultTrimTargetRatio 裁剪后目标比例 / Post-trim target fraction
	DefaultTrimTargetRatio = 0.75
	// DefaultTrimMinIntervalMS 自动 checkpoint 最小间隔 / Min auto-checkpoint interval
	DefaultTrimMinIntervalMS = 30000

	// DefaultResumptionTokens 恢复上下文默认预算 / Default resumption budget
	DefaultResumptionTokens = 4000

	// DefaultSummarizerTimeoutMS 摘要调用超时 / Summarizer call timeout
	DefaultSummarizerTimeoutMS = 30000

	// DefaultHubBufferSize 每观察者通道缓冲 / Per-observer channel buffer
	DefaultHubBufferSize = 256

	// DefaultDBFileName 默认数据库文件名 / Default database file name
	DefaultDBFileName = "journal.db"
)
