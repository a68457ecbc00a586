package gateway

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/game"
	"github.com/mcourt/quizclash/go/internal/game/events"
	"github.com/mcourt/quizclash/go/internal/models"
)

// Router decodes inbound client frames and routes them into the game core.
// Failures are reported only to the originating connection as error events.
type Router struct {
	game *game.App
	cm   *ConnectionManager
}

// NewRouter creates a new inbound message router
func NewRouter(gameApp *game.App, cm *ConnectionManager) *Router {
	return &Router{game: gameApp, cm: cm}
}

// clientMessage is the envelope of every inbound frame.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createSessionRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	StableID string `json:"stable_id"`
}

type joinSessionRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	StableID string `json:"stable_id"`
}

type rejoinRequest struct {
	Code     string `json:"code"`
	StableID string `json:"stable_id"`
}

type startGameRequest struct {
	Code string `json:"code"`
}

type submitQuestionRequest struct {
	Code     string `json:"code"`
	Question struct {
		Text        string `json:"text"`
		Answer      string `json:"answer"`
		DurationSec int    `json:"duration_sec"`
	} `json:"question"`
}

type submitGuessRequest struct {
	Code  string `json:"code"`
	Guess string `json:"guess"`
}

type chatSendRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleMessage processes one frame received from a client connection.
func (r *Router) HandleMessage(conn *Connection, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping malformed client frame")
		r.sendError(conn, "malformed message")
		return
	}

	switch msg.Type {
	case "create_session":
		var req createSessionRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		// Bind before dispatching: the actor broadcasts the initial events
		// as soon as the command lands, and the connection must already be
		// in the session pool to receive them.
		r.cm.Bind(conn, req.Code, req.StableID)
		if err := r.game.CreateSession(req.Code, req.Name, req.StableID, conn.ID); err != nil {
			r.cm.Unbind(conn)
			r.sendError(conn, err.Error())
		}

	case "join_session":
		var req joinSessionRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		r.cm.Bind(conn, req.Code, req.StableID)
		if err := r.game.JoinSession(req.Code, req.Name, req.StableID, conn.ID); err != nil {
			r.cm.Unbind(conn)
			r.sendError(conn, err.Error())
		}

	case "participant_rejoined":
		var req rejoinRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		r.cm.Bind(conn, req.Code, req.StableID)
		if err := r.game.Rejoin(req.Code, req.StableID, conn.ID); err != nil {
			r.cm.Unbind(conn)
			r.sendError(conn, err.Error())
		}

	case "start_game":
		var req startGameRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		if err := r.game.StartGame(req.Code, conn.StableID); err != nil {
			r.sendError(conn, err.Error())
		}

	case "submit_question":
		var req submitQuestionRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		q := models.Question{
			Text:        req.Question.Text,
			Answer:      req.Question.Answer,
			DurationSec: req.Question.DurationSec,
		}
		if err := r.game.SubmitQuestion(req.Code, conn.StableID, q); err != nil {
			r.sendError(conn, err.Error())
		}

	case "submit_guess":
		var req submitGuessRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		if err := r.game.SubmitGuess(req.Code, conn.StableID, req.Guess); err != nil {
			r.sendError(conn, err.Error())
		}

	case "chat_send":
		var req chatSendRequest
		if !r.decode(conn, msg.Data, &req) {
			return
		}
		if err := r.game.Chat(req.Code, conn.StableID, req.Message); err != nil {
			r.sendError(conn, err.Error())
		}

	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", msg.Type).
			Msg("unknown client message type")
		r.sendError(conn, "unknown message type: "+msg.Type)
	}
}

// HandleDisconnect reports a closed connection to the game core.
func (r *Router) HandleDisconnect(conn *Connection, reason game.DisconnectReason) {
	if conn.SessionCode == "" {
		return
	}
	log.Debug().
		Str("connection_id", conn.ID).
		Str("session", conn.SessionCode).
		Str("reason", string(reason)).
		Msg("connection disconnected")
	r.game.Disconnect(conn.SessionCode, conn.ID, reason)
}

func (r *Router) decode(conn *Connection, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		r.sendError(conn, "malformed payload")
		return false
	}
	return true
}

func (r *Router) sendError(conn *Connection, text string) {
	r.cm.SendToConnection(conn.ID, events.New(conn.SessionCode, events.TypeError, events.ErrorPayload{Text: text}, time.Now()))
}
