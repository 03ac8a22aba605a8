package webd

import (
	"encoding/json"
	"errors"

	"github.com/olahol/melody"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/playback"
	"github.com/rotblauer/trailplay/render"
	"github.com/rotblauer/trailplay/trail"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
)

type websocketAction string

const (
	// Server to client.
	websocketActionIngest websocketAction = "ingest"
	websocketActionRoutes websocketAction = "routes"
	websocketActionFrame  websocketAction = "frame"
	websocketActionCursor websocketAction = "cursor"
	websocketActionError  websocketAction = "error"

	// Client to server.
	websocketActionLoad   websocketAction = "load"
	websocketActionSelect websocketAction = "select"
	websocketActionPlay   websocketAction = "play"
	websocketActionPause  websocketAction = "pause"
	websocketActionReset  websocketAction = "reset"
	websocketActionSpeed  websocketAction = "speed"
	websocketActionSeek   websocketAction = "seek"
)

const sessionKey = "playback"

var errUnknownAction = errors.New("unknown action")

type ingestMessage struct {
	Action websocketAction          `json:"action"`
	Points []locpoint.LocationPoint `json:"points"`
}

type routesMessage struct {
	Action websocketAction                           `json:"action"`
	Routes []conceptual.RouteID                      `json:"routes"`
	Data   map[conceptual.RouteID]trail.RouteSummary `json:"data"`
}

type frameMessage struct {
	Action websocketAction `json:"action"`
	playback.Frame
}

type cursorMessage struct {
	Action websocketAction `json:"action"`
	playback.Cursor
}

type errorMessage struct {
	Action  websocketAction `json:"action"`
	Message string          `json:"message"`
}

// initMelody sets up the websocket handler.
// Each connection gets its own playback session, driven by client messages
// and drawn back to the client as render commands and frames.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(ms *melody.Session) {
		s.logger.Info("Websocket connected", "remote", ms.Request.RemoteAddr)
		sess := s.newPlaybackSession(ms)
		ms.Set(sessionKey, sess)

		if recent := s.recent.Get(); len(recent) > 0 {
			b, _ := json.Marshal(ingestMessage{Action: websocketActionIngest, Points: recent})
			_ = ms.Write(b)
		}
	})

	s.melodyInstance.HandleMessage(func(ms *melody.Session, msg []byte) {
		sess := sessionOf(ms)
		if sess == nil {
			return
		}
		if err := s.handleSocketMessage(ms, sess, msg); err != nil {
			s.logger.Debug("Websocket message failed", "remote", ms.Request.RemoteAddr, "error", err)
			b, _ := json.Marshal(errorMessage{Action: websocketActionError, Message: err.Error()})
			_ = ms.Write(b)
		}
	})

	s.melodyInstance.HandleDisconnect(func(ms *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", ms.Request.RemoteAddr)
		if sess := sessionOf(ms); sess != nil {
			sess.Close()
		}
	})

	s.melodyInstance.HandleError(func(ms *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", ms.Request.RemoteAddr, "error", e)
	})

	// Broadcast points as they are saved.
	pushes := make(chan []locpoint.LocationPoint)
	pushSub := s.feedIngested.Subscribe(pushes)
	go func() {
		defer pushSub.Unsubscribe()
		for {
			select {
			case points := <-pushes:
				b, err := json.Marshal(ingestMessage{Action: websocketActionIngest, Points: points})
				if err != nil {
					s.logger.Error("Failed to marshal ingest event", "error", err)
					continue
				}
				if err := s.melodyInstance.Broadcast(b); err != nil && !errors.Is(err, melody.ErrClosed) {
					s.logger.Warn("Failed to broadcast ingest event", "error", err)
				}
			case err := <-pushSub.Err():
				if err != nil {
					s.logger.Error("Ingest feed subscription failed", "error", err)
				}
				return
			case <-s.done:
				return
			}
		}
	}()
}

func sessionOf(ms *melody.Session) *playback.Session {
	v, ok := ms.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*playback.Session)
	return sess
}

func (s *WebDaemon) newPlaybackSession(ms *melody.Session) *playback.Session {
	renderer := render.NewSocket(ms)
	hook := playback.WithFrameHook(func(f playback.Frame) {
		_ = renderer.Send(frameMessage{Action: websocketActionFrame, Frame: f})
	})
	// A nil *Snapper must not become a non-nil interface.
	var snapper playback.Snapper
	if s.snapper != nil {
		snapper = s.snapper
	}
	return playback.NewSession(s.Config.Playback, renderer, snapper, hook)
}

// handleSocketMessage applies one client command, eg.
//
//	{"action":"load","routeId":"morning","startDate":"2026-01-12"}
//	{"action":"select","routeId":"morning"}
//	{"action":"speed","value":4}
func (s *WebDaemon) handleSocketMessage(ms *melody.Session, sess *playback.Session, msg []byte) error {
	if !gjson.ValidBytes(msg) {
		return errors.New("invalid message")
	}
	parsed := gjson.ParseBytes(msg)
	switch websocketAction(parsed.Get("action").String()) {
	case websocketActionLoad:
		start, err := parseQueryTime(parsed.Get("startDate").String())
		if err != nil {
			return err
		}
		end, err := parseQueryTime(parsed.Get("endDate").String())
		if err != nil {
			return err
		}
		q := trail.Query{RouteID: conceptual.RouteID(parsed.Get("routeId").String()), Start: start, End: end}
		points := trail.Filter(s.locations(), q)
		routes := sess.Load(points)
		if routes == nil {
			routes = []conceptual.RouteID{}
		}
		b, err := json.Marshal(routesMessage{
			Action: websocketActionRoutes,
			Routes: routes,
			Data:   trail.Summaries(trail.Group(points)),
		})
		if err != nil {
			return err
		}
		return ms.Write(b)
	case websocketActionSelect:
		return sess.SelectRoute(conceptual.RouteID(parsed.Get("routeId").String()).OrDefault())
	case websocketActionPlay:
		return sess.Play()
	case websocketActionPause:
		sess.Pause()
	case websocketActionReset:
		sess.Reset()
	case websocketActionSpeed:
		return sess.SetSpeed(parsed.Get("value").Float())
	case websocketActionSeek:
		return sess.Seek(parsed.Get("value").Float())
	case websocketActionCursor:
		b, err := json.Marshal(cursorMessage{Action: websocketActionCursor, Cursor: sess.Cursor()})
		if err != nil {
			return err
		}
		return ms.Write(b)
	default:
		return errUnknownAction
	}
	return nil
}
