/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package olric

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tochemey/olric"
	oconfig "github.com/tochemey/olric/config"
	"github.com/tochemey/olric/hasher"
	"github.com/tochemey/olric/pkg/storage"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/goelect/errors"
	"github.com/tochemey/goelect/internal/validation"
	"github.com/tochemey/goelect/log"
)

const defaultTableSize = 1 << 20

// NodeConfig defines an embedded olric cluster member
type NodeConfig struct {
	// Name of the cluster. Members of different clusters ignore each other.
	Name string
	// Host is the address the member binds to
	Host string
	// PeersPort is the port of the olric protocol
	PeersPort int
	// DiscoveryPort is the port of the membership gossip
	DiscoveryPort int
	// Peers are the gossip addresses (host:port) of the members to join
	Peers []string
	// ReplicaCount is the number of copies of every map entry.
	// Default: 1
	ReplicaCount int
	// BootstrapTimeout bounds the start of the member
	BootstrapTimeout time.Duration
	// ShutdownTimeout bounds the stop of the member
	ShutdownTimeout time.Duration
	// Logger receives the olric logs. It defaults to log.DefaultLogger.
	Logger log.Logger
}

var _ validation.Validator = (*NodeConfig)(nil)

// Sanitize sets the default values of the unset fields
func (c *NodeConfig) Sanitize() {
	if c.ReplicaCount <= 0 {
		c.ReplicaCount = 1
	}
	if c.BootstrapTimeout <= 0 {
		c.BootstrapTimeout = oconfig.DefaultBootstrapTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
}

// Validate implements validation.Validator.
func (c *NodeConfig) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewIDValidator("Name", c.Name)).
		AddValidator(validation.NewTCPAddressValidator(c.peersAddress())).
		AddValidator(validation.NewTCPAddressValidator(c.discoveryAddress()))
	for _, peer := range c.Peers {
		chain = chain.AddValidator(validation.NewTCPAddressValidator(peer))
	}
	return chain.Validate()
}

func (c *NodeConfig) peersAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.PeersPort))
}

func (c *NodeConfig) discoveryAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.DiscoveryPort))
}

// Node is an embedded olric cluster member. Its Client can be handed to New.
type Node struct {
	server          *olric.Olric
	client          olric.Client
	logger          log.Logger
	shutdownTimeout time.Duration
	running         *atomic.Bool
}

// StartNode starts an olric member and waits until it is ready
func StartNode(ctx context.Context, config NodeConfig) (*Node, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(err)
	}

	conf, err := buildConfig(&config)
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, config.BootstrapTimeout)
	defer cancel()

	started := make(chan struct{})
	conf.Started = func() { close(started) }

	server, err := olric.New(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create olric member: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-started:
	case err := <-errCh:
		if err == nil {
			err = errors.New("olric member stopped while starting")
		}
		return nil, fmt.Errorf("failed to start olric member: %w", err)
	case <-startCtx.Done():
		return nil, multierr.Combine(fmt.Errorf("failed to start olric member: %w", startCtx.Err()), server.Shutdown(context.WithoutCancel(ctx)))
	}

	config.Logger.Infof("olric member started on %s", config.peersAddress())
	return &Node{
		server:          server,
		client:          server.NewEmbeddedClient(),
		logger:          config.Logger,
		shutdownTimeout: config.ShutdownTimeout,
		running:         atomic.NewBool(true),
	}, nil
}

// Client returns the embedded client of the member
func (n *Node) Client() olric.Client {
	return n.client
}

// Stop leaves the cluster. It is safe to call multiple times.
func (n *Node) Stop(ctx context.Context) error {
	if !n.running.CompareAndSwap(true, false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.shutdownTimeout)
	defer cancel()

	if err := n.server.Shutdown(ctx); err != nil {
		n.logger.Errorf("failed to stop olric member: %v", err)
		return err
	}
	return nil
}

func buildConfig(config *NodeConfig) (*oconfig.Config, error) {
	logLevel := "INFO"
	switch config.Logger.LogLevel() {
	case log.DebugLevel:
		logLevel = "DEBUG"
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		logLevel = "ERROR"
	case log.WarningLevel:
		logLevel = "WARN"
	default:
	}

	options := storage.NewConfig(nil)
	options.Add("tableSize", uint64(defaultTableSize))

	cfg := &oconfig.Config{
		BindAddr:          config.Host,
		BindPort:          config.PeersPort,
		ReplicaCount:      config.ReplicaCount,
		WriteQuorum:       1,
		ReadQuorum:        1,
		MemberCountQuorum: 1,
		Peers:             config.Peers,
		DMaps: &oconfig.DMaps{
			Engine: &oconfig.Engine{
				Config: options.ToMap(),
			},
		},
		KeepAlivePeriod:   oconfig.DefaultKeepAlivePeriod,
		PartitionCount:    oconfig.DefaultPartitionCount,
		BootstrapTimeout:  config.BootstrapTimeout,
		ReplicationMode:   oconfig.SyncReplicationMode,
		JoinRetryInterval: oconfig.DefaultJoinRetryInterval,
		MaxJoinAttempts:   oconfig.DefaultMaxJoinAttempts,
		LogLevel:          logLevel,
		LogOutput:         newLogWriter(config.Logger),
		Hasher:            hasher.NewDefaultHasher(),
	}

	if config.Logger.LogLevel() == log.DebugLevel {
		cfg.LogVerbosity = oconfig.DefaultLogVerbosity
	}

	mconfig, err := oconfig.NewMemberlistConfig("lan")
	if err != nil {
		return nil, fmt.Errorf("failed to configure memberlist: %w", err)
	}

	mconfig.BindAddr = config.Host
	mconfig.BindPort = config.DiscoveryPort
	mconfig.AdvertiseAddr = config.Host
	mconfig.AdvertisePort = config.DiscoveryPort
	mconfig.Label = fmt.Sprintf("goelect-%s", strings.ToLower(config.Name))
	cfg.MemberlistConfig = mconfig
	return cfg, nil
}
