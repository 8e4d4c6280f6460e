// Package run runs streamchart commands: local streaming to stdout, WebSocket relay and connection test
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/streamchart/base"
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/output"
)

const metricPrefix = "streamchart_"

// Run streams all queries in the config file and writes updates to stdout until all sessions end or stopped by signals
func Run(configFile string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, metricPrefix)
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}

	if err := loader.Stream(os.Stdout, newSignalChannel()); err != nil {
		logger.Fatal(err)
	}
}

// Serve runs the WebSocket relay on the given address until stopped by signals
func Serve(configFile string, address string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, metricPrefix)
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}
	runLogger := logger.WithField(defs.LabelComponent, "Launcher")

	relay := loader.NewRelay()
	server := relay.Listen(address)

	if len(loader.Queries) > 0 {
		runLogger.Warnf("%d queries in config are ignored in relay mode", len(loader.Queries))
	}

	s := <-newSignalChannel()
	runLogger.Infof("received %s, shutting down", s)

	ctx, cancel := context.WithTimeout(context.Background(), defs.SessionStopTimeout)
	defer cancel()
	relay.CloseClients()
	if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		runLogger.Errorf("error shutting down relay listener: %v", err)
	}
	loader.Multiplexer.Shutdown()
	runLogger.Info("clean exit")
}

// Probe tests the connection to the default producer and prints the result as JSON
func Probe(configFile string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, metricPrefix)
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}

	result := loader.Probe(context.Background(), os.Stdout)
	if result.Status != base.StatusSuccess {
		os.Exit(1)
	}
}

// Stream submits the queries from config and writes updates until all sessions have ended or anything is received
// from stop
//
// Updates already published are written out before return.
func (loader *Loader) Stream(out io.Writer, stop <-chan os.Signal) error {
	runLogger := logger.WithField(defs.LabelComponent, "Launcher")

	writer, writerErr := output.NewUpdateWriter(loader.Output.Format, out)
	if writerErr != nil {
		return fmt.Errorf("output.format: %w", writerErr)
	}
	sub, subErr := loader.Subscribe()
	if subErr != nil {
		return subErr
	}

	written := channels.NewSignalAwaitable()
	go func() {
		defer written.Signal()
		for update := range sub.Updates() {
			if err := writer.Write(update); err != nil {
				runLogger.Errorf("failed to write update of %s: %s", update.Key, err.Error())
			}
		}
	}()

	allEnded := make(chan struct{})
	go func() {
		stoppedSignals := make([]channels.Awaitable, 0, len(sub.Sessions()))
		for _, s := range sub.Sessions() {
			stoppedSignals = append(stoppedSignals, s.Stopped())
		}
		channels.AllAwaitables(stoppedSignals...).WaitForever()
		close(allEnded)
	}()

	select {
	case s := <-stop:
		runLogger.Infof("received %s, shutting down", s)
	case <-allEnded:
		runLogger.Info("all sessions ended")
	}

	sub.Unsubscribe()
	loader.Multiplexer.Shutdown()
	written.WaitForever()
	runLogger.Info("clean exit")
	return nil
}

// Probe tests the connection to the default producer and writes the result in JSON
func (loader *Loader) Probe(ctx context.Context, out io.Writer) base.ConnectionStatus {
	start := time.Now()
	result := loader.Source.TestConnection(ctx)
	logger.WithField(defs.LabelAddress, loader.Source.Address()).Infof("connection test: %s in %s", result.Status, time.Since(start))

	encoder := json.NewEncoder(out)
	if err := encoder.Encode(result); err != nil {
		logger.Errorf("failed to write result: %s", err.Error())
	}
	return result
}

func newSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGTERM)
	return sigChan
}
