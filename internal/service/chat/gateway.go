// Package chat 实现实时聊天链路
// conn.go      WebSocket 连接读写
// registry.go  连接注册表与房间广播
// gateway.go   入站帧处理
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/dto/respond"
	"chat_relay_server/internal/infrastructure/metrics"
	"chat_relay_server/internal/model"
	"chat_relay_server/pkg/constants"
	"chat_relay_server/pkg/errorx"
	"chat_relay_server/pkg/util/snowflake"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"
)

// MessageBuffer 发送路径依赖的消息缓冲
type MessageBuffer interface {
	Append(ctx context.Context, msg model.BufferedMessage) error
	FlushRoom(ctx context.Context, roomID string) error
}

// TaskSubmitter 后台任务池，提交失败返回 false
type TaskSubmitter interface {
	TrySubmit(task func()) bool
}

// Gateway 处理一条连接上的入站帧
type Gateway struct {
	registry *Registry
	buffer   MessageBuffer
	tasks    TaskSubmitter
	validate *validator.Validate
	trans    ut.Translator
	now      func() time.Time
}

// NewGateway 创建帧处理器，tasks 为 nil 时不做离开即落库
func NewGateway(registry *Registry, buffer MessageBuffer, tasks TaskSubmitter) *Gateway {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	enT := en.New()
	trans, _ := ut.New(enT, enT).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		zap.L().Error("register frame validator translations failed", zap.Error(err))
	}
	return &Gateway{
		registry: registry,
		buffer:   buffer,
		tasks:    tasks,
		validate: v,
		trans:    trans,
		now:      time.Now,
	}
}

// Registry 返回网关使用的注册表
func (g *Gateway) Registry() *Registry { return g.registry }

// Serve 接管一条已升级的连接直到其关闭
func (g *Gateway) Serve(conn *UserConn, identity string) {
	if err := g.registry.Register(conn, identity); err != nil {
		zap.L().Error("ws register failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		conn.Close()
		return
	}
	go conn.WriteLoop()
	conn.ReadLoop(func(frame []byte) {
		g.HandleFrame(conn, frame)
	})
	conn.Close()
	g.Disconnect(conn)
}

// Disconnect 注销连接，房间空了则提交落库
func (g *Gateway) Disconnect(conn Conn) []string {
	rooms := g.registry.Unregister(conn)
	for _, roomID := range rooms {
		g.flushIfEmpty(roomID)
	}
	return rooms
}

// HandleFrame 处理一帧 JSON
func (g *Gateway) HandleFrame(conn Conn, data []byte) {
	var frame request.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.FramesReceived.WithLabelValues("malformed").Inc()
		g.replyError(conn, errorx.New(errorx.CodeInvalidParam, "malformed frame"))
		return
	}

	switch frame.Type {
	case request.FrameTypePing:
		metrics.FramesReceived.WithLabelValues(frame.Type).Inc()
		g.reply(conn, respond.PongFrame{Type: respond.FrameTypePong, Ts: g.now().UnixMilli()})
	case request.FrameTypeJoin:
		metrics.FramesReceived.WithLabelValues(frame.Type).Inc()
		g.handleJoin(conn, frame.RoomID)
	case request.FrameTypeLeave:
		metrics.FramesReceived.WithLabelValues(frame.Type).Inc()
		g.handleLeave(conn, frame.RoomID)
	case request.FrameTypeSend:
		metrics.FramesReceived.WithLabelValues(frame.Type).Inc()
		g.handleSend(conn, &frame)
	default:
		metrics.FramesReceived.WithLabelValues("unknown").Inc()
		zap.L().Info("ignore unknown frame type", zap.String("conn_id", conn.ID()), zap.String("type", frame.Type))
	}
}

func (g *Gateway) handleJoin(conn Conn, roomID string) {
	if err := g.validate.Var(roomID, "required,max=100"); err != nil {
		g.replyError(conn, errorx.New(errorx.CodeInvalidParam, "roomId is required"))
		return
	}
	if err := g.registry.JoinRoom(conn, roomID); err != nil {
		g.replyError(conn, errorx.Wrap(err, errorx.CodeInvalidParam, err.Error()))
	}
}

func (g *Gateway) handleLeave(conn Conn, roomID string) {
	if roomID == "" {
		g.replyError(conn, errorx.New(errorx.CodeInvalidParam, "roomId is required"))
		return
	}
	g.registry.LeaveRoom(conn, roomID)
	g.flushIfEmpty(roomID)
}

func (g *Gateway) handleSend(conn Conn, frame *request.ChatFrame) {
	if err := g.validate.Struct(frame); err != nil {
		g.replyError(conn, errorx.Wrap(err, errorx.CodeInvalidParam, g.translate(err)))
		return
	}

	sender, ok := g.registry.Identity(conn)
	if !ok {
		sender = constants.GUEST_SENDER_PREFIX + conn.ID()
	}
	msg := model.BufferedMessage{
		ID:        snowflake.GenerateID(),
		RoomID:    frame.RoomID,
		SenderID:  sender,
		Kind:      model.KindOf(frame.MediaURL),
		Content:   frame.Content,
		MediaType: frame.MediaType,
		MediaURL:  frame.MediaURL,
		Ts:        g.now().UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.WS_APPEND_TIMEOUT)
	defer cancel()
	if err := g.buffer.Append(ctx, msg); err != nil {
		zap.L().Error("append message failed",
			zap.String("room_id", msg.RoomID),
			zap.String("user_id", sender),
			zap.Error(err))
		g.replyError(conn, errorx.Wrap(err, errorx.CodeCacheError, "message not accepted"))
		return
	}

	out, err := json.Marshal(respond.NewChatMessageFrame(msg))
	if err != nil {
		zap.L().Error("marshal chat frame failed", zap.Error(err))
		return
	}
	g.registry.Broadcast(msg.RoomID, out)
}

// flushIfEmpty 房间已无成员时在后台落库
func (g *Gateway) flushIfEmpty(roomID string) {
	if g.tasks == nil || g.registry.RoomSize(roomID) > 0 {
		return
	}
	submitted := g.tasks.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.FLUSH_TIMEOUT)
		defer cancel()
		if err := g.buffer.FlushRoom(ctx, roomID); err != nil {
			zap.L().Error("flush on last leave failed", zap.String("room_id", roomID), zap.Error(err))
		}
	})
	if !submitted {
		zap.L().Debug("flush on last leave skipped, pool busy", zap.String("room_id", roomID))
	}
}

func (g *Gateway) translate(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(g.trans))
	}
	return strings.Join(msgs, "; ")
}

func (g *Gateway) replyError(conn Conn, err *errorx.CodeError) {
	g.reply(conn, respond.ErrorFrame{Type: respond.FrameTypeError, Code: err.Code, Msg: err.Msg})
}

func (g *Gateway) reply(conn Conn, v any) {
	out, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("marshal reply failed", zap.Error(err))
		return
	}
	if err := conn.Send(out); err != nil {
		zap.L().Debug("reply dropped", zap.String("conn_id", conn.ID()), zap.Error(err))
	}
}
