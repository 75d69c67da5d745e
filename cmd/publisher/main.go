package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
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
	userId := flag.Int("user-id", 1, "Publishing user's id, used as the topic instance key")
	reliable := flag.Bool("reliable", true, "Use RELIABLE instead of BEST_EFFORT delivery")
	transientLocal := flag.Bool("transient-local", false, "Use TRANSIENT_LOCAL instead of VOLATILE durability")
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

	pub := dp.CreatePublisher()
	dw, err := pub.CreateDataWriter(*topic, ts, q)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create data writer")
	}
	log.Info().Str("topic", *topic).Msg("Data writer ready, type a line and press enter")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			msg := &chatmessage.ChatMessage{UserId: int32(*userId), Text: line}
			writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := dw.Write(writeCtx, msg)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("Write failed")
				continue
			}
			matched := dw.GetMatchedSubscriptions()
			fmt.Fprintf(os.Stderr, "sent %q to %d matched subscriber(s)\n", line, len(matched))
		}
	}
}
