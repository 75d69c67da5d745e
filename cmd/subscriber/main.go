package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/participant"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/transport"
	"rtpsgo/rtps/typesupport"
	"rtpsgo/rtps/typesupport/chatmessage"
	"rtpsgo/rtps/types"
)

func main() {
	domainId := flag.Int("domain", 0, "DDS domain id")
	topic := flag.String("topic", "Chat", "Topic name")
	reliable := flag.Bool("reliable", true, "Use RELIABLE instead of BEST_EFFORT delivery")
	transientLocal := flag.Bool("transient-local", false, "Use TRANSIENT_LOCAL instead of VOLATILE durability")
	pollInterval := flag.Duration("poll-interval", 200*time.Millisecond, "How often to drain the reader's cache")
	logLevel := flag.String("log-level", "info", "Log level: debug/info/warn/error")
	memoryLimit := flag.Int("memory-limit", 256, "Memory limit in MB")

	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch *logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		log.Fatal().Str("level", *logLevel).Msg("Invalid log level")
	}

	debug.SetMemoryLimit(int64(*memoryLimit) * 1024 * 1024)

	if *topic == "" {
		log.Fatal().Msg("--topic is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := transport.NewUDPv4Transport(0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open UDP transport")
	}

	dp, err := participant.NewDomainParticipant(ctx, types.DomainId(*domainId), "", tr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create domain participant")
	}
	defer dp.DeleteParticipant()
	log.Info().Int("domain", *domainId).Msg("Participant joined")

	q := qos.Default()
	if *reliable {
		q.Reliability.Kind = qos.Reliable
	}
	if *transientLocal {
		q.Durability.Kind = qos.TransientLocal
		q.History.Kind = qos.KeepLast
		q.History.Depth = 100
	}

	ts := typesupport.NewStructTypeSupport("ChatMessage", (*chatmessage.ChatMessage)(nil))

	sub := dp.CreateSubscriber()
	dr, err := sub.CreateDataReader(*topic, ts, q)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create data reader")
	}
	log.Info().Str("topic", *topic).Msg("Data reader ready, waiting for samples")

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return
		case <-ticker.C:
			for _, s := range dr.Take(16) {
				msg, ok := s.Data.(*chatmessage.ChatMessage)
				if !ok {
					continue
				}
				log.Info().
					Int32("user-id", msg.UserId).
					Str("text", msg.Text).
					Str("kind", s.Kind.String()).
					Msg("sample received")
			}
		}
	}
}
