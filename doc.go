// Package kadence implements the protocol core of a Kademlia distributed
// hash table: the routing table, the iterative lookup state machine, the
// PING/STORE/FIND_NODE/FIND_VALUE request handlers, and the background
// replication, expiration and refresh loops.
//
// Wire transport and value persistence are external collaborators supplied
// through the Transport and Storage interfaces. The core never opens sockets
// and never touches disk on its own; a bundled in-memory Storage
// implementation (MemoryStorage) is provided for testing and for nodes that
// do not need durable values.
package kadence
