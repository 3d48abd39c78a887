// Package douban is a client for the secondary crowd-sourced cast provider.
//
// Every remote call waits on a shared token bucket so bursts of cast
// supplementation never exceed the configured request rate.
package douban
