package apihandlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"eou/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var invalidInput = models.ErrorMessage{Error: "Invalid input"}

// messageHandler turns one text frame into the reply to send back.
type messageHandler func(ctx context.Context, logger *log.Entry, data []byte) any

// StreamHandler serves path predictions, one reply per request message.
func (h *APIHandler) StreamHandler(c *gin.Context) {
	h.serveSocket(c, "stream", h.handlePathMessage)
}

// EOUHandler serves end-of-utterance predictions.
func (h *APIHandler) EOUHandler(c *gin.Context) {
	h.serveSocket(c, "eou", h.handleEOUMessage)
}

type frame struct {
	msgType int
	data    []byte
}

func (h *APIHandler) serveSocket(c *gin.Context, route string, handle messageHandler) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The request context stops tracking the client after the hijack, so
	// each socket gets its own, cancelled when the reader stops.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if !h.sockets.add(conn, cancel) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}
	defer h.sockets.remove(conn)

	logger := log.WithFields(log.Fields{
		"conn_id": uuid.NewString(),
		"route":   route,
		"remote":  c.ClientIP(),
	})
	logger.Info("Client connected")

	conn.SetReadLimit(h.readLimit())
	frames := make(chan frame)
	go readFrames(ctx, cancel, conn, logger, frames)

	for {
		var f frame
		select {
		case <-ctx.Done():
			return
		case next, ok := <-frames:
			if !ok {
				return
			}
			f = next
		}

		var reply any = invalidInput
		if f.msgType == websocket.TextMessage {
			reply = handle(ctx, logger, f.data)
		}
		if err := conn.WriteJSON(reply); err != nil {
			logger.Errorf("Failed to send reply: %v", err)
			return
		}
	}
}

// readFrames feeds frames to the handler loop one at a time and cancels ctx
// when the client goes away, aborting any prediction still running.
func readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, logger *log.Entry, frames chan<- frame) {
	defer close(frames)
	defer cancel()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				logger.Info("Client disconnected")
			case ctx.Err() != nil:
				logger.Debugf("Socket closed: %v", err)
			default:
				logger.Errorf("Connection error: %v", err)
				closeNormally(conn)
			}
			return
		}
		select {
		case frames <- frame{msgType: msgType, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (h *APIHandler) handlePathMessage(ctx context.Context, logger *log.Entry, data []byte) any {
	var req models.PathRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Debugf("Rejected path request: %v", err)
		return invalidInput
	}
	res, err := h.App.PathService.Predict(ctx, req)
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		logger.Debugf("Rejected path request: %v", err)
		return invalidInput
	case err != nil:
		logger.Errorf("Path prediction failed: %v", err)
	default:
		logger.WithFields(log.Fields{"path": res.Path, "score": res.Score}).Debug("Path reply")
	}
	return res
}

func (h *APIHandler) handleEOUMessage(ctx context.Context, logger *log.Entry, data []byte) any {
	var req models.EOURequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Debugf("Rejected EOU request: %v", err)
		return invalidInput
	}
	res, err := h.App.EOUService.Predict(ctx, req)
	if err != nil {
		logger.Debugf("Rejected EOU request: %v", err)
		return invalidInput
	}
	return res
}
