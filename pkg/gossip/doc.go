// Package gossip replicates the local key-value store and the set of known
// peers to the other nodes in the cluster.
//
// Each round the node sends its full store snapshot and its known peers to a
// random peer over UDP, and merges any snapshot it receives. A received
// snapshot is only applied if its version is greater than the local version,
// though the peers it carries are always recorded. Therefore each node will
// eventually converge to the same view of the store and the cluster.
package gossip
