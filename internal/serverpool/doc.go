// Package serverpool implements SPEC_FULL 4.10's upstream pool: a latency- and reliability-tracking
// selector over a fixed list of upstream transport.URIs, used by a Resolver whenever WithServers
// names more than one candidate upstream. See Pool for the selection algorithm.
package serverpool
