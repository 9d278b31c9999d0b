// Package services contains the core engine logic: change detection,
// the indexing pipeline, and the hybrid search service.
//
// Services implement the driving ports and depend only on domain types,
// driven ports, the chunker, and the executor. All remote calls go
// through the executor; services never talk to the network directly.
package services
