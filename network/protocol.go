package network

import "github.com/wfunc/snakesladders/board"

// Inbound message types.
const (
	MsgInitGame      = "init_game"
	MsgJoinGame      = "join_game"
	MsgDiceRoll      = "dice_roll"
	MsgMovePiece     = "move_piece"
	MsgMovePieceTest = "move_piece_test"
	MsgWinnerAddress = "winner_address"
)

// Outbound message types not shared with inbound ones.
const (
	MsgGameCreated  = "game_created"
	MsgGameExist    = "game_exist"
	MsgNoGame       = "no_game"
	MsgGameFull     = "game_full"
	MsgGameJoined   = "game_joined"
	MsgPlayerJoined = "player_joined"
	MsgStartGame    = "start_game"
	MsgPlayerWon    = "player_won"
	MsgPlayerLeft   = "player_left"
	MsgWontWork     = "wont_work"
	MsgError        = "error"
)

// Values of ErrorMessage.ErrorType.
const (
	ErrTypeProtocol     = "protocol_error"
	ErrTypeInternal     = "internal_error"
	ErrTypeInitGame     = "init_game_error"
	ErrTypeJoinGame     = "join_game_error"
	ErrTypeDiceRoll     = "dice_roll_error"
	ErrTypeMovePiece    = "move_piece_error"
	ErrTypeMoveTest     = "move_piece_test"
	ErrTypeWinnerNotice = "winner_address_error"
	ErrTypeGameExpired  = "game_expired"
)

// ForfeitWinner in PlayerWon tells the receiver that it won because everyone else left.
const ForfeitWinner = -1

// Envelope is enough of an inbound message to route it.
type Envelope struct {
	Type string `json:"type"`
}

type InitGameRequest struct {
	GameCode   string `json:"gameCode"`
	NumPlayers int    `json:"numPlayers"`
	PublicKey  string `json:"publicKey"`
}

type JoinGameRequest struct {
	GameCode  string `json:"gameCode"`
	PublicKey string `json:"publicKey"`
}

type DiceRollRequest struct {
	GameCode string `json:"gameCode"`
}

type MovePieceRequest struct {
	GameCode  string `json:"gameCode"`
	Player    *int   `json:"player"`
	DiceValue int    `json:"diceValue"`
}

type MovePieceTestRequest struct {
	GameCode string `json:"gameCode"`
	Player   *int   `json:"player"`
	Position int    `json:"position"`
}

type WinnerAddressRequest struct {
	GameCode  string `json:"gameCode"`
	PublicKey string `json:"publicKey"`
}

// GameCodeMessage covers game_created, game_exist, no_game, game_full and player_joined.
type GameCodeMessage struct {
	Type     string `json:"type"`
	GameCode string `json:"gameCode"`
}

type GameJoined struct {
	Type       string `json:"type"`
	GameCode   string `json:"gameCode"`
	NumPlayers int    `json:"numPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

type StartGame struct {
	Type       string `json:"type"`
	GameCode   string `json:"gameCode"`
	Color      string `json:"color"`
	NumPlayers int    `json:"numPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

type DiceRolled struct {
	Type      string `json:"type"`
	DiceValue int    `json:"diceValue"`
	Turn      int    `json:"turn"`
}

type PieceMoved struct {
	Type       string           `json:"type"`
	Result     board.MoveResult `json:"result"`
	GamePlayer int              `json:"game_player"`
	DiceValue  int              `json:"diceValue"`
}

type PiecePlaced struct {
	Type     string `json:"type"`
	Player   int    `json:"player"`
	Position int    `json:"position"`
}

type PlayerWon struct {
	Type   string `json:"type"`
	Player int    `json:"player"`
}

// PlayerLeft carries the turn after the departure once the game has started.
type PlayerLeft struct {
	Type     string `json:"type"`
	GameCode string `json:"gameCode"`
	Player   int    `json:"player"`
	Turn     *int   `json:"turn,omitempty"`
}

type WontWork struct {
	Type       string `json:"type"`
	GamePlayer int    `json:"game_player"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

func NewGameCodeMessage(msgType, gameCode string) GameCodeMessage {
	return GameCodeMessage{Type: msgType, GameCode: gameCode}
}

func NewError(errorType, message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, ErrorType: errorType, Message: message}
}
