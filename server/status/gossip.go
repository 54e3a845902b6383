package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/dnd/pkg/gossip"
)

// GossipPeers is the response to the gossip peers route.
type GossipPeers struct {
	// Local is the peer advertised by the node.
	Local gossip.Peer `json:"local"`

	// Peers contains the peers known by the node, including itself.
	Peers []gossip.Peer `json:"peers"`
}

// Gossip exposes the gossip state of the node.
type Gossip struct {
	gossip *gossip.Gossip
}

func NewGossip(gossip *gossip.Gossip) *Gossip {
	return &Gossip{
		gossip: gossip,
	}
}

func (s *Gossip) Register(group *gin.RouterGroup) {
	group.GET("/peers", s.peersRoute)
}

func (s *Gossip) peersRoute(c *gin.Context) {
	c.JSON(http.StatusOK, &GossipPeers{
		Local: s.gossip.LocalPeer(),
		Peers: s.gossip.Peers(),
	})
}

var _ Handler = &Gossip{}
