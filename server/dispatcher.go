package server

import (
	"encoding/json"
	"errors"
	"runtime/debug"
	"time"

	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/network"
	"github.com/wfunc/snakesladders/room"
	"github.com/wfunc/snakesladders/session"
)

var errMissingPlayer = errors.New("player is required")

// handleMessage routes one inbound frame. Panics stop here and become internal_error.
func (s *GameServer) handleMessage(sess *session.Session, data []byte) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("panic handling message", "session", sess.GetID(), "panic", r, "stack", string(debug.Stack()))
			s.reply(sess, network.NewError(network.ErrTypeInternal, "internal server error"))
		}
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	var env network.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.monitor.IncMessagesReceived("invalid")
		s.reply(sess, network.NewError(network.ErrTypeProtocol, "malformed message"))
		return
	}

	switch env.Type {
	case network.MsgInitGame:
		s.handleInitGame(sess, data)
	case network.MsgJoinGame:
		s.handleJoinGame(sess, data)
	case network.MsgDiceRoll:
		s.handleDiceRoll(sess, data)
	case network.MsgMovePiece:
		s.handleMovePiece(sess, data)
	case network.MsgMovePieceTest:
		s.handleMovePieceTest(sess, data)
	case network.MsgWinnerAddress:
		s.handleWinnerAddress(sess, data)
	default:
		s.monitor.IncMessagesReceived("unknown")
		logger.Log.Infof("Unknown message type %q from session %s", env.Type, sess.GetID())
		s.reply(sess, network.NewError(network.ErrTypeProtocol, "unknown message type"))
		return
	}
	s.monitor.IncMessagesReceived(env.Type)
}

func (s *GameServer) handleInitGame(sess *session.Session, data []byte) {
	var req network.InitGameRequest
	if !s.decode(sess, data, &req) {
		return
	}

	_, err := s.roomManager.CreateRoom(sess, req.GameCode, req.NumPlayers, req.PublicKey)
	switch {
	case err == nil:
		s.monitor.SetActiveRooms(s.roomManager.Count())
	case errors.Is(err, room.ErrRoomExists):
		s.reply(sess, network.NewGameCodeMessage(network.MsgGameExist, req.GameCode))
	default:
		s.reply(sess, network.NewError(network.ErrTypeInitGame, err.Error()))
	}
}

func (s *GameServer) handleJoinGame(sess *session.Session, data []byte) {
	var req network.JoinGameRequest
	if !s.decode(sess, data, &req) {
		return
	}

	_, err := s.roomManager.JoinRoom(sess, req.GameCode, req.PublicKey)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrRoomNotFound):
		s.reply(sess, network.NewGameCodeMessage(network.MsgNoGame, req.GameCode))
	case errors.Is(err, room.ErrRoomFull):
		s.reply(sess, network.NewGameCodeMessage(network.MsgGameFull, req.GameCode))
	default:
		s.reply(sess, network.NewError(network.ErrTypeJoinGame, err.Error()))
	}
}

func (s *GameServer) handleDiceRoll(sess *session.Session, data []byte) {
	var req network.DiceRollRequest
	if !s.decode(sess, data, &req) {
		return
	}
	r, ok := s.lookup(sess, req.GameCode)
	if !ok {
		return
	}

	_, err := r.Roll(sess)
	switch {
	case err == nil:
		s.monitor.IncDiceRolls()
	case errors.Is(err, room.ErrRoomNotFound):
		s.reply(sess, network.NewGameCodeMessage(network.MsgNoGame, req.GameCode))
	default:
		s.reply(sess, network.NewError(network.ErrTypeDiceRoll, err.Error()))
	}
}

func (s *GameServer) handleMovePiece(sess *session.Session, data []byte) {
	var req network.MovePieceRequest
	if !s.decode(sess, data, &req) {
		return
	}
	if req.Player == nil {
		s.reply(sess, network.NewError(network.ErrTypeProtocol, errMissingPlayer.Error()))
		return
	}
	r, ok := s.lookup(sess, req.GameCode)
	if !ok {
		return
	}

	settlement, err := r.Move(sess, *req.Player, req.DiceValue)
	switch {
	case err == nil:
		if settlement != nil {
			s.settlement.Settle(settlement)
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}
	case errors.Is(err, room.ErrRoomNotFound):
		s.reply(sess, network.NewGameCodeMessage(network.MsgNoGame, req.GameCode))
	case errors.Is(err, room.ErrRollRejected), errors.Is(err, room.ErrNotMember), errors.Is(err, room.ErrNotActive):
		s.monitor.IncRejectedMoves()
		s.reply(sess, network.WontWork{Type: network.MsgWontWork, GamePlayer: *req.Player})
	default:
		s.reply(sess, network.NewError(network.ErrTypeMovePiece, err.Error()))
	}
}

func (s *GameServer) handleMovePieceTest(sess *session.Session, data []byte) {
	if !s.cfg.Game.DebugMoves {
		s.reply(sess, network.NewError(network.ErrTypeMoveTest, "debug moves are disabled"))
		return
	}
	var req network.MovePieceTestRequest
	if !s.decode(sess, data, &req) {
		return
	}
	if req.Player == nil {
		s.reply(sess, network.NewError(network.ErrTypeProtocol, errMissingPlayer.Error()))
		return
	}
	r, ok := s.lookup(sess, req.GameCode)
	if !ok {
		return
	}

	err := r.DebugMove(sess, *req.Player, req.Position)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrRoomNotFound):
		s.reply(sess, network.NewGameCodeMessage(network.MsgNoGame, req.GameCode))
	default:
		s.reply(sess, network.NewError(network.ErrTypeMoveTest, err.Error()))
	}
}

func (s *GameServer) handleWinnerAddress(sess *session.Session, data []byte) {
	var req network.WinnerAddressRequest
	if !s.decode(sess, data, &req) {
		return
	}
	if req.GameCode == "" || req.PublicKey == "" {
		s.reply(sess, network.NewError(network.ErrTypeWinnerNotice, "gameCode and publicKey are required"))
		return
	}
	s.settlement.AnnounceWinnerAddress(req.GameCode, req.PublicKey)
}

// lookup finds the room for gameCode, answering no_game when it does not exist.
func (s *GameServer) lookup(sess *session.Session, gameCode string) (*room.Room, bool) {
	r, ok := s.roomManager.GetRoom(gameCode)
	if !ok {
		s.reply(sess, network.NewGameCodeMessage(network.MsgNoGame, gameCode))
	}
	return r, ok
}

func (s *GameServer) decode(sess *session.Session, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		logger.Log.Debugw("bad payload", "session", sess.GetID(), "error", err)
		s.reply(sess, network.NewError(network.ErrTypeProtocol, "malformed message"))
		return false
	}
	return true
}

func (s *GameServer) reply(sess *session.Session, msg any) {
	if err := s.broadcaster.Send(sess, msg); err != nil {
		logger.Log.Debugw("reply not delivered", "session", sess.GetID(), "error", err)
	}
}
