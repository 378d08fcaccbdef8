// Command baspd runs a single BASP broker node over real TCP, suitable
// for manually wiring up a small mesh by hand: start a few instances,
// publish an actor on one, connect the others to it, and watch routes
// propagate.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinenet/basp/actorsys"
	"github.com/pinenet/basp/broker"
	"github.com/pinenet/basp/codec"
	"github.com/pinenet/basp/config"
	"github.com/pinenet/basp/metrics"
	"github.com/pinenet/basp/wire"
)

type echoPayload struct {
	Text string
}

func main() {
	var (
		nodeSeed    = flag.Int("node", 1, "byte used to derive this node's fingerprint, for local demos")
		listenAddr  = flag.String("publish", "", "address to publish an echo actor on, e.g. :4040 (empty disables publishing)")
		connectAddr = flag.String("connect", "", "address of a peer broker to connect to on startup")
		metricsAddr = flag.String("metrics", "", "address to serve Prometheus metrics on, e.g. :9090 (empty disables metrics)")
		heartbeat   = flag.Duration("heartbeat-interval", 0, "how often to heartbeat every connection (0 disables heartbeats)")
		connTimeout = flag.Duration("connection-timeout", 0, "close a connection if idle past this long (0 derives 3x heartbeat-interval)")
		autoconnect = flag.Bool("automatic-connections", false, "enable the connection-helper mesh-formation procedure")
	)
	flag.Parse()

	var node wire.NodeID
	node.Fingerprint[0] = byte(*nodeSeed)

	opts := config.Options{
		EnableAutomaticConnections: *autoconnect,
		HeartbeatInterval:          *heartbeat,
		ConnectionTimeout:          *connTimeout,
	}

	vc := codec.NewGobCodec()
	vc.Register("echoPayload", echoPayload{})
	vc.Register(reflectNameOf(broker.ConfigReply{}), broker.ConfigReply{})
	vc.Register(reflectNameOf(broker.ConfigQuery{}), broker.ConfigQuery{})
	vc.Register(reflectNameOf(broker.SpawnProbe{}), broker.SpawnProbe{})
	vc.Register(reflectNameOf(broker.SpawnProbeReply{}), broker.SpawnProbeReply{})

	brokerOpts := []broker.Option{broker.WithLogger(log.New(os.Stderr, "baspd: ", log.LstdFlags))}
	if *metricsAddr != "" {
		collectors := metrics.New()
		collectors.MustRegister(prometheus.DefaultRegisterer)
		brokerOpts = append(brokerOpts, broker.WithMetrics(collectors))
	}

	b := broker.New(node, vc, opts, brokerOpts...)

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Printf("baspd: serving metrics on %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	if *listenAddr != "" {
		echo := actorsys.NewMailbox(actorsys.Address{ID: wire.ActorID(1000 + *nodeSeed)}, 16)
		go runEcho(echo)
		port, err := b.Publish(echo, *listenAddr, []string{"echo"})
		if err != nil {
			log.Fatalf("baspd: publish: %v", err)
		}
		log.Printf("baspd: node %v publishing echo actor on port %d", node, port)
	}

	if *connectAddr != "" {
		peer, peerPort, err := b.Connect(*connectAddr)
		if err != nil {
			log.Fatalf("baspd: connect %s: %v", *connectAddr, err)
		}
		log.Printf("baspd: connected to node %v (listening on port %d)", peer, peerPort)
	}

	log.Printf("baspd: node %v running; press Ctrl-D to exit", node)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintf(os.Stderr, "baspd: unrecognized input %q\n", line)
	}
	b.Shutdown()
}

func runEcho(mb *actorsys.Mailbox) {
	for {
		env, ok := mb.Recv()
		if !ok {
			return
		}
		if p, ok := env.Payload.(echoPayload); ok {
			log.Printf("baspd: echo received %q from actor %d", p.Text, env.Sender.ID)
		}
	}
}

func reflectNameOf(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
