package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/room"
	"github.com/wfunc/snakesladders/services"
	"github.com/wfunc/snakesladders/session"
)

// Server manages the RPC listener.
type Server struct {
	rpc      *rpc.Server
	listener net.Listener
	address  string
}

// NewServer creates a server with its own registry so services never leak into
// net/rpc's default one.
func NewServer(addr string) *Server {
	return &Server{rpc: rpc.NewServer(), address: addr}
}

func (s *Server) Register(service any) error {
	return s.rpc.Register(service)
}

// Listen binds the address. Call Serve afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

// Serve accepts connections until Stop closes the listener.
func (s *Server) Serve() {
	logger.Log.Infof("RPC server listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// ServeConn serves a single connection, e.g. one end of a net.Pipe.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpc.ServeConn(conn)
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// LobbyService is the struct that exposes RPC methods.
type LobbyService struct {
	rooms    *room.Manager
	sessions *session.Manager
	players  *services.PlayerService
	timeout  time.Duration
}

func NewLobbyService(rooms *room.Manager, sessions *session.Manager, players *services.PlayerService) *LobbyService {
	return &LobbyService{rooms: rooms, sessions: sessions, players: players, timeout: 5 * time.Second}
}

type StatsArgs struct {
	// IncludeRooms adds one entry per live room to the reply.
	IncludeRooms bool
}

type RoomInfo struct {
	Code      string
	Capacity  int
	Phase     string
	Members   int
	Turn      int
	Positions []int
}

type StatsReply struct {
	Rooms   int
	Players int
	Detail  []RoomInfo
}

// Stats methods must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
func (ls *LobbyService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.Rooms = ls.rooms.Count()
	reply.Players = ls.sessions.Count()
	if !args.IncludeRooms {
		return nil
	}
	for _, snap := range ls.rooms.Snapshots() {
		reply.Detail = append(reply.Detail, RoomInfo{
			Code:      snap.Code,
			Capacity:  snap.Capacity,
			Phase:     snap.Phase,
			Members:   snap.Members,
			Turn:      snap.Turn,
			Positions: append([]int(nil), snap.Positions[:snap.Capacity]...),
		})
	}
	return nil
}

type PlayerStatsArgs struct {
	IdentityKey string
}

type PlayerStatsReply struct {
	TotalGames  int
	Wins        int
	Losses      int
	ForfeitWins int
}

func (ls *LobbyService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), ls.timeout)
	defer cancel()

	stats, err := ls.players.GetPlayerStats(ctx, args.IdentityKey)
	if err != nil {
		return err
	}
	reply.TotalGames = stats.TotalGames
	reply.Wins = stats.Wins
	reply.Losses = stats.Losses
	reply.ForfeitWins = stats.ForfeitWins
	return nil
}
