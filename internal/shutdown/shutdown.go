package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, runs signalHandler,
// gives in-flight work timeToWait to drain and then closes done.
func ListenForShutdown(
	signalChan chan os.Signal,
	done chan bool,
	signalHandler func(),
	timeToWait time.Duration,
	l *zap.Logger,
) {
	sig := <-signalChan
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		l.Sugar().Infow("Caught signal", "signal", sig.String())

		signalHandler()

		l.Sugar().Infow("Waiting before exit", "seconds", timeToWait.Seconds())
		time.Sleep(timeToWait)

		l.Sugar().Infow("Exiting")
		close(done)
	}
}

// WithSignalCancel returns a context that is cancelled on SIGINT or SIGTERM.
// Used by one-shot commands so a running close or import rolls back cleanly.
func WithSignalCancel(ctx context.Context, l *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	signalChan := CreateGracefulShutdownChannel()
	go func() {
		select {
		case sig := <-signalChan:
			l.Sugar().Infow("Caught signal, cancelling", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signalChan)
	}()
	return ctx, cancel
}
