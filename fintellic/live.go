package fintellic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/golang/glog"
)

type LiveSettings struct {
	WsHandshakeTimeout time.Duration
	ReconnectTimeout   time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
}

func DefaultLiveSettings() *LiveSettings {
	return &LiveSettings{
		WsHandshakeTimeout: 2 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		PingTimeout:        15 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        60 * time.Second,
	}
}

// one streamed message: the authoritative aggregate tallies for a filing
type TallyUpdate struct {
	FilingId   Id         `json:"filing_id"`
	VoteCounts VoteCounts `json:"vote_counts"`
}

// LiveTransport keeps a websocket subscription to the tally update stream
// and writes each update into the registry, so every mounted surface stays
// consistent without polling. The transport is optional; all consistency
// guarantees hold without it, it just removes the polling latency.
type LiveTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	registry *FilingRegistry

	liveUrl string
	byJwt   string

	settings *LiveSettings
}

func NewLiveTransportWithDefaults(
	ctx context.Context,
	registry *FilingRegistry,
	liveUrl string,
	byJwt string,
) *LiveTransport {
	return NewLiveTransport(ctx, registry, liveUrl, byJwt, DefaultLiveSettings())
}

func NewLiveTransport(
	ctx context.Context,
	registry *FilingRegistry,
	liveUrl string,
	byJwt string,
	settings *LiveSettings,
) *LiveTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	transport := &LiveTransport{
		ctx:      cancelCtx,
		cancel:   cancel,
		registry: registry,
		liveUrl:  liveUrl,
		byJwt:    byJwt,
		settings: settings,
	}
	go transport.run()
	return transport
}

func (self *LiveTransport) Close() {
	self.cancel()
}

func (self *LiveTransport) run() {
	defer self.cancel()

	for {
		reconnect := NewReconnect(self.settings.ReconnectTimeout)

		connect := func() (*websocket.Conn, error) {
			dialer := &websocket.Dialer{
				HandshakeTimeout: self.settings.WsHandshakeTimeout,
			}
			header := http.Header{}
			if self.byJwt != "" {
				header.Add("Authorization", fmt.Sprintf("Bearer %s", self.byJwt))
			}
			ws, _, err := dialer.DialContext(self.ctx, self.liveUrl, header)
			return ws, err
		}

		ws, err := connect()
		if err != nil {
			glog.Infof("[live]connect error = %s\n", err)
			select {
			case <-self.ctx.Done():
				return
			case <-reconnect.After():
				continue
			}
		}

		self.handle(ws)

		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
		}
	}
}

func (self *LiveTransport) handle(ws *websocket.Conn) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					// note that for websocket a deadline timeout cannot be recovered
					return
				}
			}
		}
	}()

	for {
		select {
		case <-handleCtx.Done():
			return
		default:
		}

		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[live]<- error = %s\n", err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var update TallyUpdate
			if err := json.Unmarshal(message, &update); err != nil {
				glog.Infof("[live]<- malformed update = %s\n", err)
				continue
			}
			self.registry.WriteVoteCounts(update.FilingId, update.VoteCounts)
			glog.V(2).Infof("[live]tally %s<-\n", update.FilingId)
		default:
			glog.V(2).Infof("[live]other=%d<-\n", messageType)
		}
	}
}
