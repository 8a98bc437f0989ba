// Package notify delivers fleet events to a Telegram chat. It is send-only
// and best-effort: delivery failures are logged, never propagated, and a
// slow Telegram API never blocks a job loop.
package notify

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "gaeakeeper/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type Service struct {
	bot  *tele.Bot
	chat *tele.Chat
	log  logx.Logger

	queue chan string
	stop  chan struct{}
	done  chan struct{}
}

// New builds the notifier and starts its delivery worker. Returns an error
// when the bot token is rejected.
func New(cfg Config, log logx.Logger) (*Service, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: nil, // send-only
	})
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}

	s := &Service{
		bot:   bot,
		chat:  &tele.Chat{ID: cfg.ChatID},
		log:   log,
		queue: make(chan string, 64),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s, nil
}

func (s *Service) Close() {
	close(s.stop)
	<-s.done
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case msg := <-s.queue:
					s.send(msg)
				default:
					return
				}
			}
		case msg := <-s.queue:
			s.send(msg)
		}
	}
}

func (s *Service) send(msg string) {
	if _, err := s.bot.Send(s.chat, msg, tele.ModeHTML); err != nil {
		s.log.Warn("notification delivery failed", logx.Err(err))
	}
	// Stay well under Telegram's per-chat rate limit.
	time.Sleep(time.Second)
}

// enqueue never blocks; when the queue is full the event is dropped.
func (s *Service) enqueue(msg string) {
	select {
	case s.queue <- msg:
	default:
		s.log.Debug("notification dropped (queue full)")
	}
}

func (s *Service) FleetStarted(eligible, paused int) {
	s.enqueue(fmt.Sprintf("▶️ fleet started: <b>%d</b> active, <b>%d</b> paused", eligible, paused))
}

func (s *Service) FleetStopped() {
	s.enqueue("⏹ fleet stopped")
}

func (s *Service) AccountPaused(name, proxy, reason string) {
	s.enqueue(fmt.Sprintf("⚠️ account <b>%s</b> paused (%s)\nproxy: %s", name, reason, proxy))
}
