// Command gowasm is a small CLI harness around the gowasm embedding API:
// validate a binary, list its exports, or run one with literal i32/i64/f32/f64
// arguments. Grafana k6 embeds a JS runtime behind a cobra/pflag CLI the
// same way; this is that layout at the scale gowasm needs.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
