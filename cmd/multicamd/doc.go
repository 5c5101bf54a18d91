// Command multicamd runs the multi-camera frame aggregation daemon.
//
// It drives a synthetic camera array through the aggregation engine,
// exposes health, stats, Prometheus metrics and journal events over
// HTTP, and optionally journals bundle lifecycle events to SQLite.
//
// Configuration comes from MULTICAM_* environment variables; the most
// common knobs are also flags:
//
//	multicamd -cameras 4 -workers 8 -port 8090
//	multicamd -rig calib/rig.yaml
package main
