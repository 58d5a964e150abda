package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/snakesladders/broadcast"
	"github.com/wfunc/snakesladders/config"
	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/monitor"
	"github.com/wfunc/snakesladders/network"
	"github.com/wfunc/snakesladders/persistence"
	"github.com/wfunc/snakesladders/room"
	"github.com/wfunc/snakesladders/services"
	"github.com/wfunc/snakesladders/session"
	"github.com/wfunc/snakesladders/timer"
	gameserver_rpc "github.com/wfunc/snakesladders/rpc"
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	playerService  *services.PlayerService
	settlement     *services.SettlementService
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	rpcServer      *gameserver_rpc.Server
	reaper         *timer.TimerManager
	httpServer     *http.Server

	// mu orders Start and handleWebSocket against Shutdown; conns.Add only runs while
	// shutdownChan is open.
	mu           sync.Mutex
	conns        sync.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewGameServer wires the game server. m may be nil to disable metrics; roomOpts are
// passed through to the room registry.
func NewGameServer(cfg *config.Config, store persistence.Store, m *monitor.Monitor, roomOpts ...room.Option) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		playerService:  services.NewPlayerService(store),
		monitor:        m,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSessionBroadcaster(m)
	s.roomManager = room.NewRoomManager(s.broadcaster, roomOpts...)

	var payout *services.PayoutClient
	if cfg.Payout.Enabled {
		payout = services.NewPayoutClient(cfg.Payout)
	}
	s.settlement = services.NewSettlementService(store, payout, m, cfg.Payout.Timeout)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Game.IdleRoomTTL > 0 {
		s.reaper = timer.NewTimerManager(timer.DefaultTick)
	}

	// 注册RPC服务
	s.rpcServer = gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err := s.rpcServer.Register(gameserver_rpc.NewLobbyService(s.roomManager, s.sessionManager, s.playerService)); err != nil {
		logger.Log.Errorf("Failed to register lobby service: %v", err)
	}

	return s
}

// Handler serves /ws, /health and /stats.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start runs the RPC server and idle reaper, then blocks serving HTTP until Shutdown.
// It returns nil without listening when Shutdown came first.
func (s *GameServer) Start() error {
	listener, err := s.listen()
	if err != nil || listener == nil {
		return err
	}

	logger.Log.Infof("Game server listening on %s", listener.Addr())
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// listen binds every listener under mu so a concurrent Shutdown either sees them or
// makes Start a no-op.
func (s *GameServer) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown() {
		return nil, nil
	}
	if s.cfg.Server.RPCAddress != "" {
		if err := s.rpcServer.Listen(); err != nil {
			return nil, err
		}
		go s.rpcServer.Serve()
	}

	listener, err := net.Listen("tcp", s.cfg.Server.HTTPAddress)
	if err != nil {
		s.rpcServer.Stop()
		return nil, err
	}

	if s.reaper != nil {
		s.reaper.AddTimer(s.cfg.Game.ReapInterval, s.cfg.Game.ReapInterval, s.reapIdleRooms)
	}
	return listener, nil
}

// Shutdown stops accepting connections, closes every live one and waits for their
// handlers and any settlements they started, bounded by ctx.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		close(s.shutdownChan)
		s.mu.Unlock()

		err = s.httpServer.Shutdown(ctx)
		s.sessionManager.CloseAll()

		drained := make(chan struct{})
		go func() {
			s.conns.Wait()
			s.settlement.Drain()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			logger.Log.Warn("Shutdown timed out waiting for connections to drain")
			if err == nil {
				err = ctx.Err()
			}
		}

		s.rpcServer.Stop()
		if s.reaper != nil {
			s.reaper.Stop()
		}
	})
	return err
}

func (s *GameServer) shuttingDown() bool {
	select {
	case <-s.shutdownChan:
		return true
	default:
		return false
	}
}

// track registers a connection handler unless shutdown has begun.
func (s *GameServer) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown() {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	// A connection that slipped in after CloseAll would otherwise hold the drain.
	if s.shuttingDown() {
		return
	}

	for {
		data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debugw("read failed", "session", sess.GetID(), "error", err)
			}
			return
		}
		sess.Touch()
		s.handleMessage(sess, data)
	}
}

func (s *GameServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *GameServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int{
		"rooms":   s.roomManager.Count(),
		"players": s.sessionManager.Count(),
	})
}

func (s *GameServer) reapIdleRooms() {
	if n := s.roomManager.EvictIdle(s.cfg.Game.IdleRoomTTL); n > 0 {
		s.monitor.SetActiveRooms(s.roomManager.Count())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("write response failed", "error", err)
	}
}
