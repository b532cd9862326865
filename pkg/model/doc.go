// Package model provides the vocabulary of the object graph:
// object kinds and ids, the objects themselves, the prototypes
// (immutable schemas taken from bundles) and object configurations.
//
// Objects form two ownership trees, rooted at clusters
// (cluster -> service -> component) and providers (provider -> host).
// Hosts may additionally be members of at most one cluster, and
// the host-component mapping connects hosts and components of a cluster.
package model
