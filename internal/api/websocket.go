// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jubenlab/jubengen/internal/services"
	"github.com/jubenlab/jubengen/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 服务面向本机/同源工具，放开来源检查
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketHandler 推送长任务进度的 WebSocket 处理器
type WebSocketHandler struct {
	progress *services.ProgressService
	logger   *utils.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(progress *services.ProgressService) *WebSocketHandler {
	return &WebSocketHandler{
		progress: progress,
		logger:   utils.GetLoggerWithName("ws"),
	}
}

// ProgressWebSocket 将任务进度实时推送给客户端。
// 任务结束（completed/failed）并送达最终快照后关闭连接。
func (wh *WebSocketHandler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("taskID")
	tracker, exists := wh.progress.GetTracker(taskID)
	if !exists {
		http.Error(c.Writer, "任务不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Errorf("WebSocket 升级失败（任务 %s）：%v", taskID, err)
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 读循环只为感知客户端断开
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				wh.logger.Debugf("进度推送失败（任务 %s）：%v", taskID, err)
				return
			}
			if update.Status != services.TaskStatusRunning {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(update.Status)))
				return
			}
		case <-tracker.Done:
			// 订阅通道可能先于 Done 信号耗尽，补发最终快照
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			conn.WriteJSON(tracker.Snapshot())
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}
