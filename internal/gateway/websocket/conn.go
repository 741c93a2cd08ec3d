// Package websocket 实现实时通道网关
// 把 gorilla 连接适配成登记表可用的连接句柄：
// 推送走带缓冲的发送通道，缓冲满直接丢帧，慢客户端不会拖住任何业务路径
package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"school_chat_server/internal/dto/event"
	"school_chat_server/internal/service/presence"
)

// 单次写操作的超时上限
const writeWait = 10 * time.Second

// clientCommand 客户端上行帧
// 只认 event 字段，负载对网关不透明
type clientCommand struct {
	Event string `json:"event"`
}

// Conn 一条已升级的客户端连接
// 实现 presence.ConnHandle
type Conn struct {
	ws       *websocket.Conn
	userId   string
	registry *presence.Registry

	send       chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	lastActive atomic.Int64 // unix nano
	window     time.Duration
}

// newConn 创建连接句柄
func newConn(ws *websocket.Conn, userId string, registry *presence.Registry, window time.Duration, sendBufferSize int) *Conn {
	c := &Conn{
		ws:       ws,
		userId:   userId,
		registry: registry,
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
		window:   window,
	}
	c.touch()
	return c
}

// Send 非阻塞投递一帧数据
// 缓冲满或连接已关闭返回 false，数据直接丢弃
func (c *Conn) Send(data []byte) bool {
	if data == nil {
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// LastActive 最近一次心跳时间
func (c *Conn) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// Close 关闭底层连接，幂等
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.ws.Close(); err != nil {
			zap.L().Debug("ws close error", zap.String("userId", c.userId), zap.Error(err))
		}
	})
}

// touch 刷新心跳时间
func (c *Conn) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// readPump 读取客户端上行帧
// 读超时按心跳窗口设置，收到任何帧（含 pong）都刷新；
// 读出错即注销连接，登记表负责收尾和离线广播
func (c *Conn) readPump() {
	defer c.registry.Disconnect(c.userId, c)

	_ = c.ws.SetReadDeadline(time.Now().Add(c.window))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(c.window))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			zap.L().Info("ws read closed", zap.String("userId", c.userId), zap.Error(err))
			return
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(c.window))

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			zap.L().Debug("ws bad frame", zap.String("userId", c.userId))
			continue
		}
		switch cmd.Event {
		case "heartbeat":
			// 心跳帧只为刷新时间，上面已处理
		case event.UsersOnline:
			// 按需下发在线用户快照
			c.Send(event.Marshal(event.UsersOnline, event.UsersOnlinePayload{
				UserIds: c.registry.ListOnlineUserIds(),
			}))
		default:
			zap.L().Debug("ws unknown event", zap.String("event", cmd.Event))
		}
	}
}

// writePump 把发送通道中的帧写到连接
// 写出错即注销连接
func (c *Conn) writePump() {
	defer c.registry.Disconnect(c.userId, c)

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Info("ws write closed", zap.String("userId", c.userId), zap.Error(err))
				return
			}
		}
	}
}
