// Package cluster groups fingerprinted images into near-duplicate clusters.
//
// Clusters are connected components of the graph whose edges join images
// within a Hamming distance threshold on one fingerprint kind. Membership is
// transitive: A~B and B~C put A, B and C in one cluster even when A and C are
// further apart than the threshold.
package cluster
