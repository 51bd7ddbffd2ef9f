package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adwski/signal-relay/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 64 * 1024
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second
	defaultSendQueueSize               = 256

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 5 * time.Second
	defaultPongWait     = 7 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// Dispatcher receives connection lifecycle events.
	Dispatcher interface {
		OnOpen(model.Peer)
		OnMessage(model.Peer, model.Frame)
		OnClose(model.Peer)
	}

	Config struct {
		Logger         *zerolog.Logger
		Dispatcher     Dispatcher
		ListenAddr     string
		AllowedOrigins []string

		MaxMessageSize int64
		SendQueueSize  int
		PingInterval   time.Duration
		PongWait       time.Duration
		WriteTimeout   time.Duration
	}

	Server struct {
		// connCtx is the parent of every connection context; stopConns
		// cancels it on shutdown and conns tracks the handlers still running.
		connCtx   context.Context
		stopConns context.CancelFunc
		conns     sync.WaitGroup

		dsp     Dispatcher
		ws      *websocket.Upgrader
		origins []string
		*http.Server

		maxMessageSize int64
		sendQueueSize  int
		pingInterval   time.Duration
		pongWait       time.Duration
		writeTimeout   time.Duration

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:         cfg.Logger.With().Str("component", "websocket-server").Logger(),
		dsp:            cfg.Dispatcher,
		origins:        cfg.AllowedOrigins,
		maxMessageSize: orDefault(cfg.MaxMessageSize, defaultWebSocketMaxMessageSize),
		sendQueueSize:  orDefault(cfg.SendQueueSize, defaultSendQueueSize),
		pingInterval:   orDefault(cfg.PingInterval, defaultPingInterval),
		pongWait:       orDefault(cfg.PongWait, defaultPongWait),
		writeTimeout:   orDefault(cfg.WriteTimeout, defaultWebSocketWriteDeadline),
	}
	srv.connCtx, srv.stopConns = context.WithCancel(context.Background())
	srv.ws = &websocket.Upgrader{
		HandshakeTimeout: defaultWebSocketHandshakeTimeout,
		ReadBufferSize:   defaultWebsocketReadBufferSize,
		WriteBufferSize:  defaultWebsocketWriteBufferSize,
		CheckOrigin:      srv.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/signal", srv.signal)
	mux.HandleFunc("/room", srv.signal)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func orDefault[T int | int64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

// shutdown stops accepting connections, then closes the upgraded ones,
// which http.Server.Shutdown leaves alone, and waits for their handlers.
func (srv *Server) shutdown(ctx context.Context) error {
	err := srv.Shutdown(ctx)
	srv.stopConns()

	done := make(chan struct{})
	go func() {
		srv.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}

// checkOrigin allows requests without Origin, and any origin when the
// allow list is empty or contains "*".
func (srv *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(srv.origins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range srv.origins {
		if allowed == "*" ||
			strings.EqualFold(allowed, origin) ||
			strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	srv.logger.Debug().Str("origin", origin).Msg("origin rejected")
	return false
}

func (srv *Server) signal(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	p := newPeer(uuid.NewString(), srv.sendQueueSize)
	srv.dsp.OnOpen(p)

	ctx, cancel := context.WithCancel(srv.connCtx) // long-living connection context
	srv.conns.Add(1)
	go func() {
		defer srv.conns.Done()
		srv.handleWSConn(ctx, cancel, conn, p)
	}()
}

func (srv *Server) handleWSConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	p *peer,
) {
	wg := &sync.WaitGroup{}

	logger := srv.logger.With().
		Str("peerID", p.ID()).
		Logger()

	wg.Add(2)
	go func() {
		srv.webSocketReceiver(ctx, wg, conn, p, &logger)
		cancel()
	}()
	go func() {
		srv.webSocketSender(ctx, wg, conn, p, &logger)
		cancel()
		// unblock a receiver waiting in ReadMessage
		_ = conn.SetReadDeadline(time.Now())
	}()

	wg.Wait()
	p.close()
	webSocketCloser(conn, &logger)
	srv.dsp.OnClose(p)
	logger.Debug().Msg("connection finished")
}

func (srv *Server) webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	p *peer,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(srv.pingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(srv.writeTimeout))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case f := <-p.tx:
			wsErr := conn.SetWriteDeadline(time.Now().Add(srv.writeTimeout))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := conn.NextWriter(messageType(f.Type))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(f.Data)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing message")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

func (srv *Server) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	p *peer,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(srv.maxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(srv.pongWait)
	})
	err := readDeadLineFunc(srv.pongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

RecvLoop:
	for {
		select {
		case <-ctx.Done():
			break RecvLoop
		default:
			msgType, msg, wsErr := conn.ReadMessage()
			if wsErr != nil {
				if websocket.IsCloseError(wsErr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway) {
					logger.Debug().Err(wsErr).Msg("connection closed")
				} else {
					logger.Warn().Err(wsErr).Msg("receive failed")
				}
				break RecvLoop
			}
			// any inbound traffic proves liveness
			if err = readDeadLineFunc(srv.pongWait); err != nil {
				logger.Error().Err(err).Msg("failed to set websocket read deadline")
				break RecvLoop
			}

			ft := model.FrameText
			if msgType == websocket.BinaryMessage {
				ft = model.FrameBinary
			}
			srv.dsp.OnMessage(p, model.Frame{Type: ft, Data: msg})
		}
	}
}

func messageType(ft model.FrameType) int {
	if ft == model.FrameBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage, []byte{})
		if wsErr != nil {
			logger.Debug().Err(wsErr).Msg("failed to send close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
