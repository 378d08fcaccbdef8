package broker

import (
	"time"

	"github.com/pinenet/basp/basp"
	"github.com/pinenet/basp/baserr"
)

// startTicking implements spec §4.5 "tick(scheduled_at, interval,
// timeout)": periodically heartbeat every connection and close any that
// has gone quiet past the configured timeout. Modeled on pinecone's
// router ticker goroutines, which post into the owning actor's Inbox
// rather than touching state directly from the ticker goroutine.
func (b *Broker) startTicking() {
	b.tickStop = make(chan struct{})
	interval := b.opts.HeartbeatInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				b.Act(nil, b._onTick)
			case <-b.tickStop:
				return
			}
		}
	}()
}

func (b *Broker) _onTick() {
	timeout := b.opts.EffectiveConnectionTimeout()
	now := time.Now()
	frame := basp.WriteHeartbeat()
	for h, cc := range b.conns {
		if timeout > 0 && cc.idleSince(now) > timeout {
			b.log.Printf("broker: closing connection %d: idle past connection_timeout", h)
			if b.metrics != nil {
				b.metrics.ConnectionTimeouts.Inc()
			}
			// Record the cause and let the async connection_closed event
			// run the one-and-only purge (events.go's _finishClose), the
			// same path every other close goes through; purging here too
			// would double-erase routes/proxies and double-count
			// ConnectionsClosed once that event catches up.
			cc.closeCause = baserr.New(baserr.ConnectionTimeout, "connection %d idle past timeout", h)
			b.mux.Close(h)
			continue
		}
		if err := b.mux.Write(h, frame.Bytes()); err != nil {
			b.log.Printf("broker: write heartbeat to %d: %v", h, err)
			continue
		}
		if b.metrics != nil {
			b.metrics.HeartbeatsSent.Inc()
		}
	}
}

// stopTicking stops the heartbeat goroutine, if one is running.
func (b *Broker) stopTicking() {
	if b.tickStop != nil {
		close(b.tickStop)
	}
}
