package constants

import "time"

const (
	CHANNEL_SIZE      = 100              // 通道大小
	SEND_BUFFER_SIZE  = 64               // 单连接推送缓冲区大小
	REDIS_TIMEOUT     = 1                // redis timeout (分钟)
	HEARTBEAT_WINDOW  = 60 * time.Second // 心跳超时窗口，超过视为离线
	HEARTBEAT_SWEEP   = 15 * time.Second // 心跳巡检周期
	CACHE_WORKER_NUM  = 4                // 缓存异步 Worker 数量
	CACHE_BUFFER_SIZE = 256              // 缓存任务通道缓冲区
)
