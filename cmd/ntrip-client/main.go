// Command ntrip-client is a demo wiring Config from flags into the
// library's Client: it connects, reports RTCM byte counts once a
// second, and reconnects automatically until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	ntripclient "github.com/bramburn/ntripclient"
	"github.com/bramburn/ntripclient/diagnostics"
)

func main() {
	host := flag.String("host", "localhost", "NTRIP caster host")
	port := flag.Uint("port", 8002, "NTRIP caster port")
	mountpoint := flag.String("mountpoint", "", "NTRIP caster mountpoint")
	username := flag.String("username", "", "NTRIP caster username")
	password := flag.String("password", "", "NTRIP caster password")
	lat := flag.Float64("lat", 0, "initial WGS84 latitude (0 waits for SetLocation)")
	lon := flag.Float64("lon", 0, "initial WGS84 longitude (0 waits for SetLocation)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *mountpoint == "" {
		logger.Fatal("-mountpoint is required")
	}

	cfg := ntripclient.NewConfig(*host,
		ntripclient.WithPort(uint16(*port)),
		ntripclient.WithMountpoint(*mountpoint),
		ntripclient.WithCredentials(*username, *password),
		ntripclient.WithLocation(*lat, *lon),
	)

	client := ntripclient.NewClient(cfg, ntripclient.WithLogger(logger))

	classifier := diagnostics.NewClassifier()
	client.SetRtcmClassifier(classifier)

	var bytesThisSecond int64
	client.OnRtcm(func(data []byte) {
		atomic.AddInt64(&bytesThisSecond, int64(len(data)))
	})
	client.OnState(func(old, new ntripclient.State) {
		logger.Infof("state: %s -> %s", old, new)
	})
	client.OnError(func(kind ntripclient.ErrorKind, detail string) {
		logger.Warnf("fault: %s (%s)", kind, detail)
	})

	logger.Infof("ntrip-client %s connecting to %s:%d/%s", ntripclient.VersionString(), *host, *port, *mountpoint)
	client.Connect()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			n := atomic.SwapInt64(&bytesThisSecond, 0)
			stats := classifier.Stats()
			fmt.Printf("rtcm: %d B/s, %d messages total, %d parse errors\n", n, stats.MessageTotal, stats.ParseErrors)

		case <-sigCh:
			logger.Info("shutting down")
			client.Disconnect()
			return
		}
	}
}
