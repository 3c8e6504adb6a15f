package http

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/event"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/request"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/websocket"
)

// HTTPRequestBody is the body of POST /computers/:id/http/request. Body and
// BodyBase64 are exclusive; neither means a request without a body.
type HTTPRequestBody struct {
	URL        string            `json:"url"`
	Body       *string           `json:"body"`
	BodyBase64 string            `json:"body_base64"`
	Headers    map[string]string `json:"headers"`
	Binary     bool              `json:"binary"`
	Method     string            `json:"method"`
	Redirect   *bool             `json:"redirect"`
	Timeout    *float64          `json:"timeout"`
}

// CheckURLBody is the body of POST /computers/:id/http/check.
type CheckURLBody struct {
	URL string `json:"url"`
}

// WebsocketBody is the body of POST /computers/:id/websocket.
type WebsocketBody struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Timeout *float64          `json:"timeout"`
}

// SendBody is the body of POST /computers/:id/websocket/:handle/send.
type SendBody struct {
	Message string `json:"message"`
	Binary  bool   `json:"binary"`
}

// socketCursor is the event cursor a websocket's receive calls share.
// Receives on one handle are serialized.
type socketCursor struct {
	mu     sync.Mutex
	cursor *event.Cursor
}

func toHeader(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// Request starts an asynchronous HTTP request. The outcome is queued as
// http_success or http_failure.
func (h *Handlers) Request(c *gin.Context) {
	comp, ok := h.computer(c)
	if !ok {
		return
	}

	var body HTTPRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	args := request.Args{
		URL:      body.URL,
		Headers:  toHeader(body.Headers),
		Binary:   body.Binary,
		Method:   body.Method,
		Redirect: body.Redirect,
		Timeout:  body.Timeout,
	}
	switch {
	case body.BodyBase64 != "":
		data, err := base64.StdEncoding.DecodeString(body.BodyBase64)
		if err != nil {
			badRequest(c, err)
			return
		}
		args.Body = data
	case body.Body != nil:
		args.Body = []byte(*body.Body)
	}

	done := h.metrics.TrackNetworkOperation("request")
	req, err := comp.HTTP.Request(args)
	done(err)
	if err != nil {
		h.fail(c, "request", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":    true,
		"request_id": req.ID(),
		"url":        req.Address(),
	})
}

// CheckURL validates a URL against the address rules. The verdict is queued
// as http_check.
func (h *Handlers) CheckURL(c *gin.Context) {
	comp, ok := h.computer(c)
	if !ok {
		return
	}

	var body CheckURLBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	done := h.metrics.TrackNetworkOperation("check_url")
	err := comp.HTTP.CheckURL(body.URL)
	done(err)
	if err != nil {
		h.fail(c, "check_url", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"url":     body.URL,
	})
}

// Websocket opens a websocket. The outcome is queued as websocket_success
// or websocket_failure.
func (h *Handlers) Websocket(c *gin.Context) {
	comp, ok := h.computer(c)
	if !ok {
		return
	}

	var body WebsocketBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	// Taken before connecting so the receive calls see every message.
	cursor := comp.Bridge.Cursor()

	done := h.metrics.TrackNetworkOperation("websocket")
	ws, err := comp.HTTP.Websocket(websocket.Args{
		URL:     body.URL,
		Headers: toHeader(body.Headers),
		Timeout: body.Timeout,
	})
	done(err)
	if err != nil {
		h.fail(c, "websocket", err)
		return
	}

	handle := ws.Handle().String()
	h.mu.Lock()
	h.cursors[cursorKey(comp.ID, handle)] = &socketCursor{cursor: cursor}
	h.mu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{
		"success":   true,
		"handle":    handle,
		"socket_id": ws.ID(),
		"url":       ws.Address(),
	})
}

// resolveHandle looks up the :handle path parameter.
func (h *Handlers) resolveHandle(c *gin.Context, operation string) (websocket.Handle, *socketCursor, bool) {
	comp, ok := h.computer(c)
	if !ok {
		return websocket.Handle{}, nil, false
	}

	name := c.Param("handle")
	key := cursorKey(comp.ID, name)
	handle, err := comp.HTTP.Handle(name)
	if err != nil {
		h.mu.Lock()
		delete(h.cursors, key)
		h.mu.Unlock()
		h.fail(c, operation, err)
		return websocket.Handle{}, nil, false
	}

	h.mu.Lock()
	sc, ok := h.cursors[key]
	if !ok {
		sc = &socketCursor{cursor: comp.Bridge.Cursor()}
		h.cursors[key] = sc
	}
	h.mu.Unlock()
	return handle, sc, true
}

// Send queues a message on an open websocket
func (h *Handlers) Send(c *gin.Context) {
	handle, _, ok := h.resolveHandle(c, "send")
	if !ok {
		return
	}

	var body SendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	msg := []byte(body.Message)
	if body.Binary {
		data, err := base64.StdEncoding.DecodeString(body.Message)
		if err != nil {
			badRequest(c, err)
			return
		}
		msg = data
	}

	done := h.metrics.TrackNetworkOperation("send")
	err := handle.Send(msg, body.Binary)
	done(err)
	if err != nil {
		h.fail(c, "send", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Receive waits for the next message on a websocket. The optional timeout
// query parameter is in seconds. A null message means the socket closed or
// the timeout fired.
func (h *Handlers) Receive(c *gin.Context) {
	handle, sc, ok := h.resolveHandle(c, "receive")
	if !ok {
		return
	}

	var timeout *float64
	if raw := c.Query("timeout"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, err)
			return
		}
		timeout = &secs
	}

	sc.mu.Lock()
	msg, got, err := handle.Receive(c.Request.Context(), sc.cursor, timeout)
	sc.mu.Unlock()
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		h.fail(c, "receive", err)
		return
	}
	if !got {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": nil})
		return
	}

	payload := msg.Text
	if msg.Binary {
		payload = base64.StdEncoding.EncodeToString(msg.Data)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": payload,
		"binary":  msg.Binary,
	})
}

// CloseWebsocket closes a websocket, queueing websocket_closed
func (h *Handlers) CloseWebsocket(c *gin.Context) {
	comp, ok := h.computer(c)
	if !ok {
		return
	}

	name := c.Param("handle")
	h.mu.Lock()
	delete(h.cursors, cursorKey(comp.ID, name))
	h.mu.Unlock()

	handle, err := comp.HTTP.Handle(name)
	if err != nil {
		h.fail(c, "close", neterr.ErrClosedHandle)
		return
	}
	handle.Close()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
