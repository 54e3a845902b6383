// Copyright 2024 Andrew Dunstall. All rights reserved.
//
// Use of this source code is governed by a MIT style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-sockaddr"
	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/andydunstall/dnd/pkg/gossip"
	"github.com/andydunstall/dnd/pkg/kv"
	"github.com/andydunstall/dnd/pkg/log"
	"github.com/andydunstall/dnd/server/admin"
	"github.com/andydunstall/dnd/server/api"
	"github.com/andydunstall/dnd/server/config"
	"github.com/andydunstall/dnd/server/status"
)

// Server is a node in the cluster.
//
// The node serves the key-value API and the admin API, and gossips its store
// with the other nodes in the cluster.
type Server struct {
	store *kv.Store

	gossip    *gossip.Gossip
	transport *gossip.PacketTransport

	kvLn     net.Listener
	kvServer *api.Server

	adminLn     net.Listener
	adminServer *admin.Server

	conf *config.Config

	logger log.Logger
}

// NewServer binds the nodes listeners and sets up its components.
//
// If the gossip advertise address isn't configured, it is derived from the
// bound gossip address.
func NewServer(conf *config.Config, logger log.Logger) (*Server, error) {
	logger = logger.With(zap.String("node-id", conf.Cluster.NodeID))

	registry := prometheus.NewRegistry()

	transport, err := gossip.ListenPacket(conf.Gossip.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("gossip: %w", err)
	}

	advertiseAddr := conf.Gossip.AdvertiseAddr
	if advertiseAddr == "" {
		// Use the bound address, which includes the port if the bind port
		// is 0.
		advertiseAddr, err = advertiseAddrFromBindAddr(transport.Addr().String())
		if err != nil {
			transport.Close()
			return nil, fmt.Errorf("gossip: %w", err)
		}
	}
	local, err := gossip.ParsePeer(advertiseAddr)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("gossip: advertise addr: %w", err)
	}

	kvLn, err := net.Listen("tcp", conf.KV.BindAddr)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("kv listen: %s: %w", conf.KV.BindAddr, err)
	}

	adminLn, err := net.Listen("tcp", conf.Admin.BindAddr)
	if err != nil {
		transport.Close()
		kvLn.Close()
		return nil, fmt.Errorf("admin listen: %s: %w", conf.Admin.BindAddr, err)
	}

	store := kv.NewStore()
	store.Metrics().Register(registry)

	g := gossip.New(local, store, transport, &conf.Gossip, logger)
	g.Metrics().Register(registry)

	adminServer := admin.NewServer(registry, logger)
	adminServer.AddStatus("/gossip", status.NewGossip(g))
	adminServer.AddStatus("/store", status.NewStore(store))

	kvServer := api.NewServer(
		store, conf.Gossip.MaxPacketSize, registry, logger,
	)

	return &Server{
		store:       store,
		gossip:      g,
		transport:   transport,
		kvLn:        kvLn,
		kvServer:    kvServer,
		adminLn:     adminLn,
		adminServer: adminServer,
		conf:        conf,
		logger:      logger,
	}, nil
}

// Run runs the node until the context is cancelled or a component fails.
//
// If the node is configured with a peer to join, the node announces itself
// to that peer before gossiping, otherwise it starts a new cluster.
func (s *Server) Run(ctx context.Context) error {
	defer s.transport.Close()

	s.logger.Info(
		"starting node",
		zap.String("gossip-addr", s.gossip.LocalPeer().Addr),
		zap.String("kv-addr", s.kvLn.Addr().String()),
		zap.String("admin-addr", s.adminLn.Addr().String()),
	)

	var group rungroup.Group

	// Shutdown handler.
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	group.Add(func() error {
		<-shutdownCtx.Done()
		return nil
	}, func(error) {
		shutdownCancel()
	})

	// Gossip.
	gossipCtx, gossipCancel := context.WithCancel(context.Background())
	group.Add(func() error {
		if s.conf.Cluster.Join != "" {
			// The join address has already been validated.
			peer, _ := gossip.ParsePeer(s.conf.Cluster.Join)
			return s.gossip.Join(gossipCtx, peer)
		}
		return s.gossip.Start(gossipCtx)
	}, func(error) {
		gossipCancel()

		s.logger.Info("gossip shut down")
	})

	// KV server.
	group.Add(func() error {
		if err := s.kvServer.Serve(s.kvLn); err != nil {
			return fmt.Errorf("kv server serve: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.conf.GracePeriod,
		)
		defer cancel()

		if err := s.kvServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to gracefully shutdown kv server", zap.Error(err))
		}

		s.logger.Info("kv server shut down")
	})

	// Admin server.
	group.Add(func() error {
		if err := s.adminServer.Serve(s.adminLn); err != nil {
			return fmt.Errorf("admin server serve: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.conf.GracePeriod,
		)
		defer cancel()

		if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to gracefully shutdown admin server", zap.Error(err))
		}

		s.logger.Info("admin server shut down")
	})

	if err := group.Run(); err != nil {
		return err
	}

	s.logger.Info("shutdown complete")

	return nil
}

// GossipAddr returns the advertised gossip address of the node.
func (s *Server) GossipAddr() string {
	return s.gossip.LocalPeer().Addr
}

// KVAddr returns the bound address of the key-value server.
func (s *Server) KVAddr() string {
	return s.kvLn.Addr().String()
}

// AdminAddr returns the bound address of the admin server.
func (s *Server) AdminAddr() string {
	return s.adminLn.Addr().String()
}

func advertiseAddrFromBindAddr(bindAddr string) (string, error) {
	if strings.HasPrefix(bindAddr, ":") {
		bindAddr = "0.0.0.0" + bindAddr
	}

	host, port, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return "", fmt.Errorf("invalid bind addr: %s: %w", bindAddr, err)
	}

	if host == "0.0.0.0" || host == "::" {
		ip, err := sockaddr.GetPrivateIP()
		if err != nil {
			return "", fmt.Errorf("get interface addr: %w", err)
		}
		if ip == "" {
			return "", fmt.Errorf("no private ip found")
		}
		return net.JoinHostPort(ip, port), nil
	}
	return bindAddr, nil
}
